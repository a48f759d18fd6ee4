package interpreter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
)

const systemPrompt = `You are the central advisor for a simulated country in a strategy game.
You receive the country's current state as JSON, the leader's role, and a command
written in plain language. Decide what realistically happens and how the state changes.

The state has these subsystems: economy (gdp, treasury, tax_rate, unemployment_rate,
inflation_rate, trade_balance), military (strength 0-100, readiness 0-1, budget),
population (citizens, happiness 0-1), diplomacy (alliances, trade_partners, relations
scored -100..100) and government (type, stability 0-100, corruption_index 0-100).
Keep changes proportionate to the command and the country's means.`

const responseInstructions = `Respond ONLY with a JSON object using these keys:
  "assistant_message": a short narrative of what happened (string, required)
  "updates": an object holding only the fields that change, nested by subsystem
  "events": optional list of objects with "type" and "description"
Return "updated_state" with the complete document instead of "updates" only when
the whole state must be rewritten.`

const describePrompt = `You are the narrator of a country simulation game. Write a vivid
description of the country's current situation in at most three short paragraphs,
based only on the statistics provided.`

// BuildPrompt renders the system and user messages for req.
func BuildPrompt(req Request) (system, user string, err error) {
	state, err := json.MarshalIndent(req.State, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode state: %w", err)
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = "Leader"
	}

	var b strings.Builder
	b.WriteString("Current state JSON:\n")
	b.Write(state)
	b.WriteString("\n\nLeader role: ")
	b.WriteString(role)
	b.WriteString("\nCommand: ")
	b.WriteString(req.Command)
	b.WriteString("\n\n")
	b.WriteString(responseInstructions)
	return systemPrompt, b.String(), nil
}

// BuildDescribePrompt renders the messages used to describe a country.
func BuildDescribePrompt(state country.State) (system, user string, err error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode state: %w", err)
	}
	return describePrompt, "Describe this country's current state:\n" + string(data), nil
}
