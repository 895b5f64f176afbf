package dynamo

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Domain errors for simulation operations.
var (
	// ErrConfiguration indicates a setup value that can never produce a valid run.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrDivergence indicates particles moved further than the decomposition allows.
	ErrDivergence = errors.New("dynamo: numerical divergence")

	// ErrCommMismatch indicates two partitions disagree about a message.
	ErrCommMismatch = errors.New("dynamo: communication mismatch")

	// ErrAborted indicates the run was stopped because another partition failed.
	ErrAborted = errors.New("dynamo: run aborted")
)

// ConfigError reports a configuration value rejected at setup time.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dynamo: invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// Configf builds a ConfigError for field with a formatted reason.
func Configf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ParticleState is the last known state of a particle, attached to fatal
// errors for diagnosis.
type ParticleState struct {
	Tag  int64
	Type int
	X    r3.Vec
	V    r3.Vec
	F    r3.Vec
}

func (p ParticleState) String() string {
	return fmt.Sprintf("tag=%d type=%d x=(%g,%g,%g) v=(%g,%g,%g)",
		p.Tag, p.Type, p.X.X, p.X.Y, p.X.Z, p.V.X, p.V.Y, p.V.Z)
}

// DivergenceError wraps a numerical blow-up with simulation context.
type DivergenceError struct {
	Step      int64
	Rank      int
	Reason    string
	Particles []ParticleState
}

func (e *DivergenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dynamo: numerical divergence at step %d on rank %d: %s", e.Step, e.Rank, e.Reason)
	for i, p := range e.Particles {
		if i == 4 {
			fmt.Fprintf(&b, "; ... %d more", len(e.Particles)-i)
			break
		}
		b.WriteString("; ")
		b.WriteString(p.String())
	}
	return b.String()
}

func (e *DivergenceError) Unwrap() error {
	return ErrDivergence
}

// CommMismatchError reports a message whose kind, sequence or size does not
// match what the receiving partition expected.
type CommMismatchError struct {
	Rank  int
	Peer  int
	Phase string
	Want  string
	Got   string
}

func (e *CommMismatchError) Error() string {
	return fmt.Sprintf("dynamo: communication mismatch on rank %d from rank %d during %s: want %s, got %s",
		e.Rank, e.Peer, e.Phase, e.Want, e.Got)
}

func (e *CommMismatchError) Unwrap() error {
	return ErrCommMismatch
}
