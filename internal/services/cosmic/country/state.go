// Package country models the country state document and the rules that keep
// it valid: defaults, numeric domains, merge, and diff.
package country

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SchemaVersion is the version of the document layout produced by Default.
const SchemaVersion = 1

// Top-level document keys.
const (
	KeyName       = "name"
	KeyLeader     = "leader"
	KeyEconomy    = "economy"
	KeyMilitary   = "military"
	KeyPopulation = "population"
	KeyDiplomacy  = "diplomacy"
	KeyGovernment = "government"
	KeyLog        = "log"
)

// InitialLogEntry is the first log line of every new country.
const InitialLogEntry = "Country initialized"

// State is a country document. Values are JSON-shaped: map[string]any,
// []any, string, float64, bool, or nil.
type State map[string]any

// Default returns the snapshot every country starts from.
func Default(username, role string) State {
	return State{
		KeyName: DefaultName(username),
		KeyLeader: map[string]any{
			"name": username,
			"role": role,
		},
		KeyEconomy: map[string]any{
			"gdp":               100.0,
			"treasury":          1000.0,
			"tax_rate":          0.15,
			"unemployment_rate": 0.05,
			"inflation_rate":    0.02,
			"trade_balance":     0.0,
		},
		KeyMilitary: map[string]any{
			"strength":  50.0,
			"readiness": 0.5,
			"budget":    100.0,
		},
		KeyPopulation: map[string]any{
			"citizens":  1000000.0,
			"happiness": 0.6,
		},
		KeyDiplomacy: map[string]any{
			"alliances":      []any{},
			"trade_partners": []any{},
			"relations":      map[string]any{},
		},
		KeyGovernment: map[string]any{
			"type":             "democracy",
			"stability":        60.0,
			"corruption_index": 20.0,
		},
		KeyLog: []any{InitialLogEntry},
	}
}

// DefaultName derives a country name from its leader's username, for example
// "alice" becomes "Aliceland".
func DefaultName(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return "Nowhereland"
	}
	first, size := utf8.DecodeRuneInString(username)
	head := cases.Upper(language.Und).String(string(first))
	return head + username[size:] + "land"
}

// Clone returns a deep copy of s. Mutating the copy never affects s.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return State(copyMap(s))
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return copyMap(typed)
	case State:
		return copyMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out
	default:
		return typed
	}
}

// Section returns the named top-level subsystem, or nil when absent or not
// an object.
func (s State) Section(key string) map[string]any {
	section, _ := s[key].(map[string]any)
	return section
}

// Number returns the numeric value at section.field.
func (s State) Number(section, field string) (float64, bool) {
	return toFloat(s.Section(section)[field])
}

// Log returns the string entries of the document log.
func (s State) Log() []string {
	items, _ := s[KeyLog].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if text, ok := item.(string); ok {
			out = append(out, text)
		}
	}
	return out
}

// Marshal encodes s as JSON.
func Marshal(s State) ([]byte, error) {
	if s == nil {
		s = State{}
	}
	data, err := json.Marshal(map[string]any(s))
	if err != nil {
		return nil, fmt.Errorf("marshal country state: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a JSON document. Empty input yields an empty state.
func Unmarshal(data []byte) (State, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return State{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal country state: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return State(out), nil
}
