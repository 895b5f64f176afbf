// Package compute drives the force terms of a rank over its neighbor list.
//
// Two drivers implement the same contract:
//
//   - serial: one goroutine walks the list
//   - threaded: the owned particles are split into fixed chunks, each
//     worker accumulates into its own force buffer and tallies, and the
//     buffers are merged in chunk order
//
// Both zero every force before the first term, add pair, bond, angle, list
// and long-range terms in that order, and give the same result for the
// same inputs on every call. Select one by name:
//
//	drv, err := compute.New("threaded", 8)
//	err = drv.Compute(in, &acc)
package compute
