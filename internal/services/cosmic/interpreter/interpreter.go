// Package interpreter turns a free-text command into a proposed change to a
// country document. Interpreters are untrusted: every call yields an Outcome
// that is either a Proposal or a typed Failure, never a raw error.
package interpreter

import (
	"context"

	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
)

// Request carries everything an Interpreter may read. State is a private
// copy owned by the callee.
type Request struct {
	State   country.State
	Role    string
	Command string
}

// Event is a free-form occurrence reported alongside a proposal.
type Event map[string]any

// Proposal is a well-formed interpreter answer. Exactly one of Replacement
// or Updates is set.
type Proposal struct {
	Message     string
	Replacement country.State
	Updates     map[string]any
	Events      []Event
}

// FailureKind classifies why no proposal was produced.
type FailureKind string

const (
	// FailureUnavailable means no interpreter is configured.
	FailureUnavailable FailureKind = "unavailable"
	// FailureTimeout means the call exceeded its deadline.
	FailureTimeout FailureKind = "timeout"
	// FailureTransport means the upstream call failed.
	FailureTransport FailureKind = "transport"
	// FailureRateLimited means the call budget was exhausted.
	FailureRateLimited FailureKind = "rate_limited"
	// FailureMalformed means the answer could not be used.
	FailureMalformed FailureKind = "malformed"
)

// Retryable reports whether another attempt could succeed.
func (k FailureKind) Retryable() bool {
	return k == FailureTransport || k == FailureRateLimited
}

// Failure describes why an interpretation failed. Detail is for logs only.
type Failure struct {
	Kind   FailureKind
	Detail string
}

// Error lets a Failure travel through retry helpers.
func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Detail
}

// Outcome is the result of one interpretation.
type Outcome struct {
	Proposal *Proposal
	Failure  *Failure
}

// Succeeded wraps a proposal.
func Succeeded(p Proposal) Outcome {
	return Outcome{Proposal: &p}
}

// Failed wraps a failure.
func Failed(kind FailureKind, detail string) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Detail: detail}}
}

// OK reports whether the outcome carries a proposal.
func (o Outcome) OK() bool {
	return o.Proposal != nil && o.Failure == nil
}

// Interpreter maps a request to an outcome.
type Interpreter interface {
	Interpret(ctx context.Context, req Request) Outcome
}

// Narrator writes prose about a country.
type Narrator interface {
	Describe(ctx context.Context, state country.State) (string, error)
}

// Status describes the active interpreter for clients.
type Status struct {
	Mode  string `json:"mode"`
	Model string `json:"model,omitempty"`
}

const (
	// ModeInterpreter means commands reach a language model.
	ModeInterpreter = "interpreter"
	// ModeFallback means every command uses the deterministic fallback.
	ModeFallback = "fallback"
)

// Unavailable is the interpreter used when none is configured.
type Unavailable struct{}

// Interpret always fails with FailureUnavailable.
func (Unavailable) Interpret(context.Context, Request) Outcome {
	return Failed(FailureUnavailable, "no interpreter configured")
}

// Describe always fails so callers use their fallback text.
func (Unavailable) Describe(context.Context, country.State) (string, error) {
	return "", &Failure{Kind: FailureUnavailable, Detail: "no interpreter configured"}
}

// Status reports fallback mode.
func (Unavailable) Status() Status {
	return Status{Mode: ModeFallback}
}
