// Package engine runs projection operations against one diagram.
//
// A Session owns the arena, the projector and the ledger of active layers.
// Operations (toggle, project, remove, verify, snapshot) are submitted from
// any goroutine and applied strictly one at a time by the Run loop, so the
// arena never sees concurrent mutation.
//
// Single-writer loop:
//  1. Submit stamps the operation with an id and enqueues it.
//  2. Run dequeues operations in FIFO order and stamps each with the next
//     logical sequence number.
//  3. The operation runs to completion; its result is delivered on the
//     submitter's reply channel.
//
// Failures are reported to the submitter and logged; the loop keeps going.
package engine
