// Package refine post-processes an assigned schedule so workers switch
// context less without anything slipping past a deadline.
//
// # Overview
//
// The pipeline runs two passes over the base scheduler's output:
//
//   - Consolidation merges fragments of the same task within one
//     employee/day/shift-segment into a contiguous block. A merge is rejected
//     when it would cross the segment end or delay another pending interval
//     whose (customer, stage) deadline falls before the merged end.
//   - Batching re-orders one employee/day so stages of the same family
//     ("Paint 1", "paint-2" -> paint) run back to back. An interval is never
//     moved earlier than its original start, and a move that would push the
//     interval past its own deadline is skipped with the original placement
//     kept.
//
// The two passes check deadlines differently on purpose: consolidation
// guards every pending interval it could delay, batching only the interval
// being moved. Batching is a reordering within bounds the consolidator
// already validated.
//
// # Failure policy
//
// Both passes fail open. A panic inside either pass logs the stack and
// returns that pass's input unchanged, so a defect degrades the schedule to
// "unrefined but valid" instead of failing the run. Intervals without usable
// timestamps pass through untouched.
package refine
