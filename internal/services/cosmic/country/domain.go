package country

import (
	"encoding/json"
	"math"
	"slices"
	"strings"
)

// Domain is the closed range a numeric field must stay within. Infinite
// bounds leave that side open.
type Domain struct {
	Min     float64
	Max     float64
	Integer bool
}

// Clamp saturates v to the domain, rounding integer fields.
func (d Domain) Clamp(v float64) float64 {
	if d.Integer {
		v = math.Round(v)
	}
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

// Contains reports whether v already lies within the domain.
func (d Domain) Contains(v float64) bool {
	return d.Clamp(v) == v
}

var (
	unit        = Domain{Min: 0, Max: 1}
	percent     = Domain{Min: 0, Max: 100}
	nonNegative = Domain{Min: 0, Max: math.Inf(1)}
	unbounded   = Domain{Min: math.Inf(-1), Max: math.Inf(1)}

	// RelationDomain bounds every diplomacy.relations score.
	RelationDomain = Domain{Min: -100, Max: 100}
)

// Domains lists every numeric field by section. Fields listed as unbounded
// must still be numbers.
var Domains = map[string]map[string]Domain{
	KeyEconomy: {
		"gdp":               nonNegative,
		"treasury":          unbounded,
		"tax_rate":          unit,
		"unemployment_rate": unit,
		"inflation_rate":    {Min: -1, Max: 10},
		"trade_balance":     unbounded,
	},
	KeyMilitary: {
		"strength":  {Min: 0, Max: 100, Integer: true},
		"readiness": unit,
		"budget":    nonNegative,
	},
	KeyPopulation: {
		"citizens":  {Min: 0, Max: math.Inf(1), Integer: true},
		"happiness": unit,
	},
	KeyGovernment: {
		"stability":        percent,
		"corruption_index": percent,
	},
}

// GovernmentTypes are the accepted government.type tags.
var GovernmentTypes = []string{
	"democracy", "republic", "monarchy", "federation",
	"technocracy", "theocracy", "autocracy", "council",
}

var requiredSections = []string{KeyEconomy, KeyMilitary, KeyPopulation, KeyDiplomacy, KeyGovernment}

// Sanitize returns a copy of proposed that satisfies every document
// invariant, using previous to restore values the proposal broke or dropped.
// Out-of-range numbers are saturated; non-numbers on numeric fields revert.
// The leader block always comes from previous. logLimit <= 0 leaves the log
// uncapped.
func Sanitize(proposed, previous State, logLimit int) State {
	out := proposed.Clone()
	prev := previous.Clone()

	if name, ok := out[KeyName].(string); !ok || strings.TrimSpace(name) == "" {
		if prevName, ok := prev[KeyName]; ok {
			out[KeyName] = prevName
		} else {
			delete(out, KeyName)
		}
	}
	if leader, ok := prev[KeyLeader]; ok {
		out[KeyLeader] = leader
	}

	for _, key := range requiredSections {
		if _, ok := out[key].(map[string]any); ok {
			continue
		}
		if section, ok := prev[key].(map[string]any); ok {
			out[key] = section
		} else {
			out[key] = map[string]any{}
		}
	}

	for sectionKey, fields := range Domains {
		section := out.Section(sectionKey)
		prevSection := prev.Section(sectionKey)
		for field, domain := range fields {
			sanitizeNumber(section, prevSection, field, domain)
		}
	}

	sanitizeGovernmentType(out.Section(KeyGovernment), prev.Section(KeyGovernment))
	sanitizeDiplomacy(out.Section(KeyDiplomacy), prev.Section(KeyDiplomacy))
	out[KeyLog] = capLog(logEntries(out[KeyLog], prev[KeyLog]), logLimit)
	return out
}

func sanitizeNumber(section, prevSection map[string]any, field string, domain Domain) {
	raw, present := section[field]
	if !present {
		if prevValue, ok := prevSection[field]; ok {
			section[field] = prevValue
		}
		return
	}
	if v, ok := toFloat(raw); ok {
		section[field] = domain.Clamp(v)
		return
	}
	if prevValue, ok := toFloat(prevSection[field]); ok {
		section[field] = domain.Clamp(prevValue)
		return
	}
	delete(section, field)
}

func sanitizeGovernmentType(section, prevSection map[string]any) {
	tag, _ := section["type"].(string)
	tag = strings.ToLower(strings.TrimSpace(tag))
	if slices.Contains(GovernmentTypes, tag) {
		section["type"] = tag
		return
	}
	if prevTag, ok := prevSection["type"].(string); ok && slices.Contains(GovernmentTypes, prevTag) {
		section["type"] = prevTag
		return
	}
	section["type"] = GovernmentTypes[0]
}

func sanitizeDiplomacy(section, prevSection map[string]any) {
	for _, key := range []string{"alliances", "trade_partners"} {
		value, ok := section[key]
		if !ok {
			value = prevSection[key]
		}
		section[key] = stringSet(value)
	}

	relations, ok := section["relations"].(map[string]any)
	if !ok {
		relations, _ = prevSection["relations"].(map[string]any)
	}
	prevRelations, _ := prevSection["relations"].(map[string]any)
	cleaned := make(map[string]any, len(relations))
	for name, raw := range relations {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if v, ok := toFloat(raw); ok {
			cleaned[name] = RelationDomain.Clamp(v)
			continue
		}
		if v, ok := toFloat(prevRelations[name]); ok {
			cleaned[name] = RelationDomain.Clamp(v)
		}
	}
	section["relations"] = cleaned
}

// stringSet trims, drops non-strings and blanks, and removes duplicates
// while keeping first-seen order.
func stringSet(value any) []any {
	items, _ := value.([]any)
	out := make([]any, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		text, ok := item.(string)
		if !ok {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}

// logEntries keeps text and structured (object) entries; any other shape
// is dropped.
func logEntries(value, fallback any) []any {
	items, ok := value.([]any)
	if !ok {
		items, _ = fallback.([]any)
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		switch entry := item.(type) {
		case string:
			out = append(out, entry)
		case map[string]any:
			if len(entry) > 0 {
				out = append(out, entry)
			}
		}
	}
	return out
}

// CapLog keeps only the most recent limit log entries of s.
func CapLog(s State, limit int) {
	items, _ := s[KeyLog].([]any)
	s[KeyLog] = capLog(items, limit)
}

// AppendLog adds entry to the end of the document log.
func AppendLog(s State, entry string) {
	items, _ := s[KeyLog].([]any)
	s[KeyLog] = append(slices.Clone(items), entry)
}

func capLog(items []any, limit int) []any {
	if items == nil {
		items = []any{}
	}
	if limit > 0 && len(items) > limit {
		return slices.Clone(items[len(items)-limit:])
	}
	return items
}

// Violations lists section.field paths whose values fall outside their
// declared domain. An empty result means the document is valid.
func Violations(s State) []string {
	var out []string
	for sectionKey, fields := range Domains {
		section := s.Section(sectionKey)
		for field, domain := range fields {
			raw, ok := section[field]
			if !ok {
				continue
			}
			v, ok := toFloat(raw)
			if !ok || !domain.Contains(v) {
				out = append(out, sectionKey+"."+field)
			}
		}
	}
	relations, _ := s.Section(KeyDiplomacy)["relations"].(map[string]any)
	for name, raw := range relations {
		v, ok := toFloat(raw)
		if !ok || !RelationDomain.Contains(v) {
			out = append(out, KeyDiplomacy+".relations."+name)
		}
	}
	slices.Sort(out)
	return out
}

// Finite reports whether every number nested in v is finite, so that v
// can be encoded as JSON.
func Finite(v any) bool {
	switch typed := v.(type) {
	case float64:
		return !math.IsNaN(typed) && !math.IsInf(typed, 0)
	case float32:
		return !math.IsNaN(float64(typed)) && !math.IsInf(float64(typed), 0)
	case map[string]any:
		for _, item := range typed {
			if !Finite(item) {
				return false
			}
		}
	case State:
		return Finite(map[string]any(typed))
	case []any:
		for _, item := range typed {
			if !Finite(item) {
				return false
			}
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch typed := v.(type) {
	case float64:
		f = typed
	case float32:
		f = float64(typed)
	case int:
		f = float64(typed)
	case int64:
		f = float64(typed)
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
