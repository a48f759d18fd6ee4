package interpreter

import (
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
)

var (
	messageKeys = []string{"assistant_message", "response"}
	stateKey    = "updated_state"
	updatesKey  = "updates"
)

// ParseResponse validates raw model output. The answer must be a JSON object
// (optionally wrapped in prose or a code fence) with a non-empty narrative
// and either an updated_state or an updates object.
func ParseResponse(content string) Outcome {
	body, ok := extractObject(content)
	if !ok {
		return Failed(FailureMalformed, "response holds no JSON object")
	}
	if !gjson.Valid(body) {
		return Failed(FailureMalformed, "response is not valid JSON")
	}
	root := gjson.Parse(body)
	if !root.IsObject() {
		return Failed(FailureMalformed, "response is not a JSON object")
	}
	if !finite(root) {
		return Failed(FailureMalformed, "response holds a number outside the float64 range")
	}

	var message string
	for _, key := range messageKeys {
		value := root.Get(key)
		if value.Type == gjson.String && strings.TrimSpace(value.Str) != "" {
			message = strings.TrimSpace(value.Str)
			break
		}
	}
	if message == "" {
		return Failed(FailureMalformed, "response has no narrative message")
	}

	proposal := Proposal{Message: message}
	if value := root.Get(stateKey); value.Exists() {
		doc, ok := objectValue(value)
		if !ok {
			return Failed(FailureMalformed, stateKey+" is not an object")
		}
		proposal.Replacement = country.State(doc)
	} else if value := root.Get(updatesKey); value.Exists() {
		doc, ok := objectValue(value)
		if !ok {
			return Failed(FailureMalformed, updatesKey+" is not an object")
		}
		proposal.Updates = doc
	} else {
		return Failed(FailureMalformed, "response has neither updated_state nor updates")
	}

	proposal.Events = parseEvents(root)
	return Succeeded(proposal)
}

// extractObject trims everything outside the outermost braces.
func extractObject(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return "", false
	}
	return content[start : end+1], true
}

func objectValue(value gjson.Result) (map[string]any, bool) {
	if !value.IsObject() {
		return nil, false
	}
	doc, ok := value.Value().(map[string]any)
	return doc, ok
}

// finite reports whether every number under value decodes to a finite float.
func finite(value gjson.Result) bool {
	switch {
	case value.Type == gjson.Number:
		return !math.IsInf(value.Num, 0) && !math.IsNaN(value.Num)
	case value.IsObject(), value.IsArray():
		ok := true
		value.ForEach(func(_, item gjson.Result) bool {
			ok = finite(item)
			return ok
		})
		return ok
	}
	return true
}

// parseEvents accepts "events" as a list and "event" as a single entry.
// Bare strings become {"description": s}; other shapes are dropped.
func parseEvents(root gjson.Result) []Event {
	var events []Event
	add := func(value gjson.Result) {
		switch {
		case value.IsObject():
			if doc, ok := value.Value().(map[string]any); ok {
				events = append(events, Event(doc))
			}
		case value.Type == gjson.String && strings.TrimSpace(value.Str) != "":
			events = append(events, Event{"description": strings.TrimSpace(value.Str)})
		}
	}
	if list := root.Get("events"); list.IsArray() {
		list.ForEach(func(_, item gjson.Result) bool {
			add(item)
			return true
		})
	}
	if single := root.Get("event"); single.Exists() {
		add(single)
	}
	return events
}
