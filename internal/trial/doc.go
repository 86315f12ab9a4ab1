// Package trial splits a decoded recording into trials.
//
// Boundaries come from START/END pairs in the recording-state stream. Each
// trial gets its own copy of the rows of all five indexed streams whose
// origin index falls inside its boundary, with the tracker's missing-value
// sentinel in the sample table rewritten as NaN exactly once.
package trial
