package country

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats is the summarized view of a country used by dashboards.
type Stats struct {
	BasicInfo             BasicInfo      `json:"basic_info"`
	PerformanceIndicators Indicators     `json:"performance_indicators"`
	Economy               map[string]any `json:"economy"`
	Military              map[string]any `json:"military"`
	Diplomacy             DiplomacyStats `json:"diplomacy"`
}

// BasicInfo identifies the country and its headline figures.
type BasicInfo struct {
	Name        string  `json:"name"`
	LeaderName  string  `json:"leader_name"`
	LeaderTitle string  `json:"leader_title"`
	Government  string  `json:"government_type"`
	Population  int64   `json:"population"`
	GDP         float64 `json:"gdp"`
}

// Indicators holds the bounded wellbeing figures.
type Indicators struct {
	Happiness       float64 `json:"happiness"`
	Stability       float64 `json:"stability"`
	CorruptionIndex float64 `json:"corruption_index"`
	Readiness       float64 `json:"military_readiness"`
}

// DiplomacyStats counts foreign ties.
type DiplomacyStats struct {
	Alliances     int `json:"alliances"`
	TradePartners int `json:"trade_partners"`
	Relations     int `json:"relations"`
}

// Summarize builds Stats from s. Missing fields read as zero.
func Summarize(s State) Stats {
	leader := s.Section(KeyLeader)
	government := s.Section(KeyGovernment)
	diplomacy := s.Section(KeyDiplomacy)

	name, _ := s[KeyName].(string)
	leaderName, _ := leader["name"].(string)
	leaderRole, _ := leader["role"].(string)
	govType, _ := government["type"].(string)
	alliances, _ := diplomacy["alliances"].([]any)
	partners, _ := diplomacy["trade_partners"].([]any)
	relations, _ := diplomacy["relations"].(map[string]any)

	return Stats{
		BasicInfo: BasicInfo{
			Name:        name,
			LeaderName:  leaderName,
			LeaderTitle: leaderRole,
			Government:  govType,
			Population:  Population(s),
			GDP:         s.number(KeyEconomy, "gdp"),
		},
		PerformanceIndicators: Indicators{
			Happiness:       s.number(KeyPopulation, "happiness"),
			Stability:       s.number(KeyGovernment, "stability"),
			CorruptionIndex: s.number(KeyGovernment, "corruption_index"),
			Readiness:       s.number(KeyMilitary, "readiness"),
		},
		Economy:  copyMap(orEmpty(s.Section(KeyEconomy))),
		Military: copyMap(orEmpty(s.Section(KeyMilitary))),
		Diplomacy: DiplomacyStats{
			Alliances:     len(alliances),
			TradePartners: len(partners),
			Relations:     len(relations),
		},
	}
}

// Population returns the citizen count, or zero when unknown.
func Population(s State) int64 {
	return int64(s.number(KeyPopulation, "citizens"))
}

// FallbackDescription is the description used when no narrator is available.
func FallbackDescription(s State) string {
	printer := message.NewPrinter(language.English)
	return printer.Sprintf("A nation of %d people awaits your leadership.", Population(s))
}

func (s State) number(section, field string) float64 {
	v, _ := s.Number(section, field)
	return v
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
