package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/louisbranch/agicosmic/internal/platform/errors"
	"github.com/louisbranch/agicosmic/internal/platform/id"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/interpreter"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/storage"
	"github.com/louisbranch/agicosmic/internal/telemetry"
)

var tracer = otel.Tracer("github.com/louisbranch/agicosmic/internal/services/cosmic/command")

// Config tunes the pipeline.
type Config struct {
	MaxCommandLength int
	HistoryLimit     int
	Now              func() time.Time
	NewID            func() (string, error)
}

// Result is what a caller sees after an accepted command.
type Result struct {
	Message   string
	State     country.State
	Events    []map[string]any
	Source    string
	Diff      []country.Change
	UpdatedAt time.Time
	Version   int64
}

// Service runs the command application pipeline: validate, load, interpret
// or fall back, sanitize, and commit. Commands for one country never overlap.
type Service struct {
	store   storage.CountryStore
	interp  interpreter.Interpreter
	emitter *telemetry.Emitter
	logger  *zap.Logger
	locks   *keyedMutex
	cfg     Config
}

// NewService wires a pipeline. A nil interpreter means fallback-only mode.
func NewService(store storage.CountryStore, interp interpreter.Interpreter, emitter *telemetry.Emitter, logger *zap.Logger, cfg Config) *Service {
	if interp == nil {
		interp = interpreter.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxCommandLength <= 0 {
		cfg.MaxCommandLength = DefaultMaxLength
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	return &Service{
		store:   store,
		interp:  interp,
		emitter: emitter,
		logger:  logger,
		locks:   newKeyedMutex(),
		cfg:     cfg,
	}
}

// HistoryLimit reports the configured log and history cap.
func (s *Service) HistoryLimit() int {
	return s.cfg.HistoryLimit
}

// Apply runs one command for the country owned by userID. Invalid text is
// rejected before any load or interpreter call. Interpreter problems never
// surface; storage problems always do.
func (s *Service) Apply(ctx context.Context, userID, text string) (Result, error) {
	command, err := Validate(text, s.cfg.MaxCommandLength)
	if err != nil {
		return Result{}, err
	}

	ctx, span := tracer.Start(ctx, "command.apply", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()
	start := time.Now()

	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("wait for country lock: %w", err)
	}
	defer unlock()

	current, err := s.store.GetCountryByOwner(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	outcome := s.interp.Interpret(ctx, interpreter.Request{
		State:   current.State.Clone(),
		Role:    leaderRole(current.State),
		Command: command,
	})

	now := s.cfg.Now().UTC()
	applied := Apply(current.State, command, outcome, now, s.cfg.HistoryLimit)

	entryID, err := s.cfg.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate history id: %w", err)
	}
	updated, err := s.store.CommitCommand(ctx, storage.CommandCommit{
		CountryID:       current.ID,
		ExpectedVersion: current.Version,
		State:           applied.State,
		UpdatedAt:       now,
		HistoryLimit:    s.cfg.HistoryLimit,
		Entry: storage.HistoryEntry{
			ID:        entryID,
			Command:   command,
			Message:   truncateMessage(applied.Message),
			Source:    applied.Source,
			Diff:      applied.Diff,
			Events:    applied.Events,
			CreatedAt: now,
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		if errors.Is(err, storage.ErrStateConflict) {
			return Result{}, err
		}
		return Result{}, apperrors.Wrap(apperrors.CodePersistence, "country state was not saved", err)
	}

	span.SetAttributes(attribute.String("command.source", applied.Source))
	fields := []zap.Field{
		zap.String("user_id", userID),
		zap.String("source", applied.Source),
		zap.Int("changes", len(applied.Diff)),
		zap.Int64("version", updated.Version),
		zap.Duration("latency", time.Since(start)),
	}
	if applied.Failure != nil {
		span.SetAttributes(attribute.String("interpreter.failure", string(applied.Failure.Kind)))
		fields = append(fields,
			zap.String("failure", string(applied.Failure.Kind)),
			zap.String("failure_detail", applied.Failure.Detail))
	}
	s.logger.Info("command applied", fields...)
	s.emit(ctx, userID, applied, updated.Version)

	return Result{
		Message:   applied.Message,
		State:     updated.State,
		Events:    applied.Events,
		Source:    applied.Source,
		Diff:      applied.Diff,
		UpdatedAt: updated.UpdatedAt,
		Version:   updated.Version,
	}, nil
}

func (s *Service) emit(ctx context.Context, userID string, applied Applied, version int64) {
	attrs := map[string]any{"source": applied.Source, "version": version, "changes": len(applied.Diff)}
	evt := telemetry.Event{Name: telemetry.EventCommandApplied, UserID: userID, Attributes: attrs}
	if applied.Failure != nil {
		attrs["failure"] = string(applied.Failure.Kind)
		evt.Name = telemetry.EventCommandFallback
		evt.Severity = telemetry.SeverityWarn
	}
	if err := s.emitter.Emit(ctx, evt); err != nil {
		s.logger.Warn("record telemetry event", zap.String("event", evt.Name), zap.Error(err))
	}
}

// Country returns the current document for userID.
func (s *Service) Country(ctx context.Context, userID string) (storage.Country, error) {
	return s.store.GetCountryByOwner(ctx, userID)
}

// History returns up to limit recent history entries, oldest first. A
// non-positive limit uses the configured cap.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]storage.HistoryEntry, error) {
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	c, err := s.store.GetCountryByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, c.ID, limit)
}

// Describe returns a narrated description, or the fixed fallback text when
// narration fails.
func (s *Service) Describe(ctx context.Context, userID string) (string, string, error) {
	c, err := s.store.GetCountryByOwner(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if narrator, ok := s.interp.(interpreter.Narrator); ok {
		text, err := narrator.Describe(ctx, c.State.Clone())
		if err == nil {
			return text, SourceInterpreter, nil
		}
		s.logger.Info("description fell back", zap.String("user_id", userID), zap.Error(err))
	}
	return country.FallbackDescription(c.State), SourceFallback, nil
}

// Status reports whether commands reach an interpreter.
func (s *Service) Status() interpreter.Status {
	if reporter, ok := s.interp.(interface{ Status() interpreter.Status }); ok {
		return reporter.Status()
	}
	return interpreter.Status{Mode: interpreter.ModeInterpreter}
}

func leaderRole(s country.State) string {
	role, _ := s.Section(country.KeyLeader)["role"].(string)
	return role
}
