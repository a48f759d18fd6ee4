package http

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/louisbranch/agicosmic/internal/platform/requestctx"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/account"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/storage"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/token"
	"github.com/louisbranch/agicosmic/internal/telemetry"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func userView(u account.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Role: u.Role, CreatedAt: u.CreatedAt}
}

// handleRegister creates the account and its default country together.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := account.CreateUser(account.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	}, h.hasher, h.now, h.newID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	countryID, err := h.newID()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c := storage.Country{
		ID:            countryID,
		OwnerUserID:   user.ID,
		SchemaVersion: country.SchemaVersion,
		State:         country.Default(user.Username, user.Role),
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.CreatedAt,
	}
	if err := h.users.CreateUserWithCountry(r.Context(), user, c); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	h.emit(r, telemetry.Event{
		Name:       telemetry.EventUserRegistered,
		UserID:     user.ID,
		Attributes: map[string]any{"username": user.Username, "country_id": countryID},
	})
	writeJSON(w, http.StatusCreated, userView(user))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), req.Username)
	if err == nil {
		err = h.hasher.Verify(user.PasswordHash, req.Password)
	} else if errors.Is(err, storage.ErrNotFound) {
		err = account.ErrInvalidCredentials
	}
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			h.emit(r, telemetry.Event{
				Name:       telemetry.EventLoginFailed,
				Severity:   telemetry.SeverityWarn,
				Attributes: map[string]any{"username": account.NormalizeUsername(req.Username)},
			})
		}
		h.writeError(w, r, err)
		return
	}

	raw, claims, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: raw,
		TokenType:   token.Type,
		ExpiresIn:   int64(claims.ExpiresAt.Sub(claims.IssuedAt).Seconds()),
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = token.ErrInvalid
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(user))
}

func (h *Handler) emit(r *http.Request, evt telemetry.Event) {
	if err := h.emitter.Emit(r.Context(), evt); err != nil {
		h.logger.Warn("record telemetry event", zap.String("event", evt.Name), zap.Error(err))
	}
}
