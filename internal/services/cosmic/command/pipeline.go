// Package command applies free-text commands to country documents.
package command

import (
	"maps"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/agicosmic/internal/platform/errors"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/interpreter"
)

const (
	// DefaultMaxLength bounds command text, in runes.
	DefaultMaxLength = 2000
	// DefaultHistoryLimit is how many log and history entries are kept.
	DefaultHistoryLimit = 10

	// SourceInterpreter marks results proposed by the interpreter.
	SourceInterpreter = "interpreter"
	// SourceFallback marks results produced by Fallback.
	SourceFallback = "fallback"

	// FallbackTreasuryCost is deducted from the treasury by every fallback.
	FallbackTreasuryCost = 10.0
	// FallbackMessage is the narrative returned by every fallback.
	FallbackMessage = "Acknowledged command (fallback mode). Treasury -10."
	// FallbackLogPrefix precedes the command text in the fallback log entry.
	FallbackLogPrefix = "[FALLBACK] Executed: "

	historyMessageLimit = 200
)

// Validate trims text and checks it is non-empty and at most maxLength
// runes. A non-positive maxLength uses DefaultMaxLength.
func Validate(text string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.New(apperrors.CodeCommandEmpty, "command is required")
	}
	if n := utf8.RuneCountInString(text); n > maxLength {
		return "", apperrors.WithMetadata(apperrors.CodeCommandTooLong, "command is too long", map[string]string{
			"max_length": strconv.Itoa(maxLength),
		})
	}
	return text, nil
}

// Fallback deducts FallbackTreasuryCost from the treasury and logs the
// command. It never fails and never touches its input.
func Fallback(state country.State, command string) (string, country.State) {
	next := state.Clone()
	economy := next.Section(country.KeyEconomy)
	if economy == nil {
		economy = map[string]any{}
		next[country.KeyEconomy] = economy
	}
	treasury, _ := next.Number(country.KeyEconomy, "treasury")
	economy["treasury"] = roundCents(treasury - FallbackTreasuryCost)
	country.AppendLog(next, FallbackLogPrefix+command)
	return FallbackMessage, next
}

// Applied is the pure result of applying one command.
type Applied struct {
	Message string
	State   country.State
	Events  []map[string]any
	Source  string
	// Failure is set when the fallback ran.
	Failure *interpreter.Failure
	Diff    []country.Change
}

// Apply turns an interpreter outcome into the next document. Proposals are
// merged (or substituted) and sanitized against state; failures run the
// fallback. The log is capped to logLimit entries.
func Apply(state country.State, command string, outcome interpreter.Outcome, now time.Time, logLimit int) Applied {
	if logLimit <= 0 {
		logLimit = DefaultHistoryLimit
	}
	if state == nil {
		state = country.State{}
	}

	if outcome.OK() && !finiteProposal(*outcome.Proposal) {
		outcome = interpreter.Failed(interpreter.FailureMalformed, "proposal holds a non-finite number")
	}

	var applied Applied
	if outcome.OK() {
		p := outcome.Proposal
		proposed := p.Replacement
		if proposed == nil {
			proposed = country.Merge(state, p.Updates)
		}
		applied = Applied{
			Message: p.Message,
			State:   country.Sanitize(proposed, state, logLimit),
			Events:  stampEvents(p.Events, now),
			Source:  SourceInterpreter,
		}
	} else {
		message, next := Fallback(state, command)
		country.CapLog(next, logLimit)
		applied = Applied{
			Message: message,
			State:   next,
			Events:  []map[string]any{},
			Source:  SourceFallback,
			Failure: outcome.Failure,
		}
		if applied.Failure == nil {
			applied.Failure = &interpreter.Failure{Kind: interpreter.FailureMalformed, Detail: "empty outcome"}
		}
	}
	applied.Diff = country.Diff(state, applied.State)
	return applied
}

func finiteProposal(p interpreter.Proposal) bool {
	if !country.Finite(map[string]any(p.Replacement)) || !country.Finite(p.Updates) {
		return false
	}
	for _, evt := range p.Events {
		if !country.Finite(map[string]any(evt)) {
			return false
		}
	}
	return true
}

// stampEvents copies events and adds a timestamp where one is missing.
func stampEvents(events []interpreter.Event, now time.Time) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	stamp := now.UTC().Format(time.RFC3339)
	for _, evt := range events {
		copied := maps.Clone(map[string]any(evt))
		if copied == nil {
			copied = map[string]any{}
		}
		if _, ok := copied["timestamp"]; !ok {
			copied["timestamp"] = stamp
		}
		out = append(out, copied)
	}
	return out
}

// truncateMessage shortens a narrative for the history record.
func truncateMessage(message string) string {
	if utf8.RuneCountInString(message) <= historyMessageLimit {
		return message
	}
	runes := []rune(message)
	return string(runes[:historyMessageLimit]) + "..."
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
