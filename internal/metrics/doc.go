// Package metrics aggregates the frames a sequence was expected to produce and
// the frames it produced, per thread, and reports the dropped-frame
// percentages once enough frames were seen.
package metrics
