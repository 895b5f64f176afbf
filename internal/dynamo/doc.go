// Package dynamo provides the primitives shared by every stage of the
// molecular dynamics core.
//
// The package defines the error taxonomy and the helpers that the rest of
// the engine builds on:
//
//   - [ConfigError]: invalid setup, detected before any step executes
//   - [DivergenceError]: lost or runaway particles, fatal for the whole run
//   - [CommMismatchError]: a partition received a message it did not expect
//   - [Units]: conversion constants for the supported unit systems
//   - [ParallelFor]: chunked fan-out used by threaded force evaluation
//
// # Example
//
//	if err := cfg.Validate(); err != nil {
//		if errors.Is(err, dynamo.ErrConfiguration) {
//			// reject before starting partitions
//		}
//	}
//
// # Fatal errors
//
// None of the errors in this package are retried. A partition returning
// one of them aborts every other partition of the run.
package dynamo
