// Package frame holds the data-only types exchanged between a frame
// scheduler and the sequence trackers: begin-frame args, acks, presentation
// feedback and the wraparound-aware frame token order.
package frame
