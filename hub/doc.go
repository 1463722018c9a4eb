// Package hub implements the bus: a single multicast channel with
// synchronous in-order delivery, a keyed reactive state store with late-join
// replay, and resilient stream utilities (transform pipelines with bounded
// retries, N-way stream fusion, pull-based iteration, bounded-buffer
// back-pressure).
//
// Faults never escape the hub as panics or process termination; subscriber
// and transform failures are contained at the smallest possible scope and
// converted into diagnostic events on the bus itself.
package hub
