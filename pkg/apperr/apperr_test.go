package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"unauthorized", Unauthorized("authenticate"), http.StatusUnauthorized},
		{"no company context", NoCompanyContext("no company"), http.StatusUnauthorized},
		{"forbidden", Forbidden("membership inactive"), http.StatusForbidden},
		{"not found", NotFound("user", "u1"), http.StatusNotFound},
		{"internal", Internal("db down", errors.New("conn refused")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStatusOfWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", Forbidden("denied"))
	if got := StatusOf(err); got != http.StatusForbidden {
		t.Errorf("StatusOf(wrapped) = %d, want 403", got)
	}
}

func TestWrapPreservesStatus(t *testing.T) {
	wrapped := Wrap(Forbidden("denied"), "capability lookup")
	if wrapped.Status != http.StatusForbidden {
		t.Errorf("Wrap() status = %d, want 403", wrapped.Status)
	}

	plain := Wrap(errors.New("timeout"), "capability lookup")
	if plain.Status != http.StatusInternalServerError {
		t.Errorf("Wrap() status = %d, want 500", plain.Status)
	}
}

func TestCodeDistinguishesNoCompanyContext(t *testing.T) {
	// Same status as plain 401, different remediation.
	plain := Unauthorized("authenticate")
	noCompany := NoCompanyContext("no company")
	if plain.Status != noCompany.Status {
		t.Fatal("expected both to be 401")
	}
	if CodeOf(plain) == CodeOf(noCompany) {
		t.Error("codes must distinguish unauthenticated from no-company-context")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("conn refused")
	err := Internal("db down", cause)
	if !errors.Is(err, cause) {
		t.Error("Internal() must unwrap to its cause")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(NotFound("membership", "m1")) {
		t.Error("IsNotFound() = false for NotFound error")
	}
	if IsNotFound(errors.New("db down")) {
		t.Error("IsNotFound() = true for infrastructure error")
	}
}
