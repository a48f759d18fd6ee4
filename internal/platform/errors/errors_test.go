package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeUsernameTaken, "username already taken")
	if !stderrors.Is(err, New(CodeUsernameTaken, "different message")) {
		t.Fatal("expected errors with same code to match")
	}
	if stderrors.Is(err, New(CodeNotFound, "username already taken")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(CodePersistence, "commit state", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause in chain")
	}
	if err.Error() != "commit state: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestGetCodeThroughWrapping(t *testing.T) {
	inner := New(CodeCommandEmpty, "command is required")
	wrapped := fmt.Errorf("apply: %w", inner)
	if got := GetCode(wrapped); got != CodeCommandEmpty {
		t.Fatalf("GetCode = %s, want %s", got, CodeCommandEmpty)
	}
	if got := GetCode(fmt.Errorf("plain")); got != CodeUnknown {
		t.Fatalf("GetCode = %s, want %s", got, CodeUnknown)
	}
}

func TestPublicMessageHidesUnknown(t *testing.T) {
	if got := PublicMessage(fmt.Errorf("sql: connection refused")); got != "internal error" {
		t.Fatalf("expected generic message, got %q", got)
	}
	if got := PublicMessage(Wrap(CodePersistence, "state was not saved", fmt.Errorf("sql"))); got != "state was not saved" {
		t.Fatalf("expected domain message, got %q", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeCommandEmpty, http.StatusBadRequest},
		{CodeCommandTooLong, http.StatusBadRequest},
		{CodeUsernameInvalid, http.StatusBadRequest},
		{CodeRequestMalformed, http.StatusBadRequest},
		{CodeCredentialsInvalid, http.StatusUnauthorized},
		{CodeTokenInvalid, http.StatusUnauthorized},
		{CodeUsernameTaken, http.StatusConflict},
		{CodeNotFound, http.StatusNotFound},
		{CodeStateConflict, http.StatusInternalServerError},
		{CodePersistence, http.StatusInternalServerError},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}
