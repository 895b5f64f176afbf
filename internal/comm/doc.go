// Package comm implements the spatial decomposition of the box across
// ranks and the message passing between them.
//
// Each rank owns one rectangular sub-box of a processor grid. Ranks only
// talk over an Endpoint of a World: per-pair buffered channels carrying
// typed messages whose kind, sequence number and record count are checked
// on receipt. Nothing is shared between ranks except the World itself.
//
// Per step the phases run in a fixed order: Exchange migrates owned
// particles that crossed a sub-box face, Borders rebuilds the ghost halo
// and records the swap plan, ForwardComm refreshes ghost positions on steps
// that reuse the plan, and ReverseComm folds ghost forces back into owners.
package comm
