package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/agicosmic/internal/platform/errors"
	"github.com/louisbranch/agicosmic/internal/platform/requestctx"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/storage"
)

// recentDecisions is how many history entries the stats view carries.
const recentDecisions = 5

const decisionMessageLimit = 200

type stateResponse struct {
	State     country.State `json:"state"`
	UpdatedAt time.Time     `json:"updated_at"`
	Version   int64         `json:"version"`
}

type commandRequest struct {
	Command string `json:"command"`
}

type commandResponse struct {
	AssistantMessage string           `json:"assistant_message"`
	State            country.State    `json:"state"`
	Events           []map[string]any `json:"events"`
	Source           string           `json:"source"`
	Diff             []country.Change `json:"diff"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Version          int64            `json:"version"`
}

type historyEntryView struct {
	ID        string           `json:"id"`
	Command   string           `json:"command"`
	Message   string           `json:"message"`
	Source    string           `json:"source"`
	Diff      []country.Change `json:"diff"`
	Events    []map[string]any `json:"events"`
	CreatedAt time.Time        `json:"created_at"`
}

type historyResponse struct {
	Entries []historyEntryView `json:"entries"`
}

type decisionView struct {
	Command   string    `json:"command"`
	Response  string    `json:"response"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

type statsResponse struct {
	country.Stats
	RecentDecisions []decisionView `json:"recent_decisions"`
}

type descriptionResponse struct {
	Description string `json:"description"`
	Source      string `json:"source"`
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	c, err := h.commands.Country(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{State: c.State, UpdatedAt: c.UpdatedAt, Version: c.Version})
}

// handleCommand is the only way into the command pipeline.
func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.commands.Apply(r.Context(), requestctx.UserIDFromContext(r.Context()), req.Command)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	diff := result.Diff
	if diff == nil {
		diff = []country.Change{}
	}
	writeJSON(w, http.StatusOK, commandResponse{
		AssistantMessage: result.Message,
		State:            result.State,
		Events:           result.Events,
		Source:           result.Source,
		Diff:             diff,
		UpdatedAt:        result.UpdatedAt,
		Version:          result.Version,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, r, apperrors.New(apperrors.CodeRequestMalformed, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	entries, err := h.commands.History(r.Context(), requestctx.UserIDFromContext(r.Context()), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := historyResponse{Entries: make([]historyEntryView, 0, len(entries))}
	for _, entry := range entries {
		out.Entries = append(out.Entries, historyView(entry))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	c, err := h.commands.Country(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, err := h.commands.History(r.Context(), userID, recentDecisions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := statsResponse{
		Stats:           country.Summarize(c.State),
		RecentDecisions: make([]decisionView, 0, len(entries)),
	}
	for _, entry := range entries {
		out.RecentDecisions = append(out.RecentDecisions, decisionView{
			Command:   entry.Command,
			Response:  shorten(entry.Message, decisionMessageLimit),
			Source:    entry.Source,
			Timestamp: entry.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleDescription(w http.ResponseWriter, r *http.Request) {
	text, source, err := h.commands.Describe(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, descriptionResponse{Description: text, Source: source})
}

func historyView(entry storage.HistoryEntry) historyEntryView {
	diff := entry.Diff
	if diff == nil {
		diff = []country.Change{}
	}
	events := entry.Events
	if events == nil {
		events = []map[string]any{}
	}
	return historyEntryView{
		ID:        entry.ID,
		Command:   entry.Command,
		Message:   entry.Message,
		Source:    entry.Source,
		Diff:      diff,
		Events:    events,
		CreatedAt: entry.CreatedAt,
	}
}

func shorten(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}
