/*Package interval implements overlap queries against sorted arrays of
  non-overlapping genomic intervals ("extents"), keyed per chromosome and
  strand by the caller.
  (Note 'non-overlapping'.  The arrays this package searches partition the
  coordinate axis; merged annotation bins satisfy this by construction.  A
  general interval tree is deliberately not provided, since it buys nothing
  over binary search on a partition.)
  It assumes every position fits in a PosType, which is currently defined as
  int32 since that's what BAM files are limited to.
*/
package interval
