package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/JaimeStill/docintel/pkg/middleware"
)

type fakeVerifier struct {
	valid string
}

func (f fakeVerifier) Verify(ctx context.Context, raw string) (*oidc.IDToken, error) {
	if raw != f.valid {
		return nil, errors.New("token rejected")
	}
	return &oidc.IDToken{Subject: "advisor-7"}, nil
}

func TestAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var subject string
	handler := middleware.Auth(fakeVerifier{valid: "good"}, logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject = middleware.Subject(r.Context())
			w.WriteHeader(http.StatusOK)
		}),
	)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"rejected token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject = ""
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/runs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && subject != "advisor-7" {
				t.Errorf("subject: got %q, want advisor-7", subject)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestAuthConfigFinalize(t *testing.T) {
	disabled := middleware.AuthConfig{}
	if err := disabled.Finalize(nil); err != nil {
		t.Fatalf("disabled auth should not require issuer: %v", err)
	}

	missing := middleware.AuthConfig{Enabled: true}
	if err := missing.Finalize(nil); err == nil {
		t.Error("enabled auth without issuer should fail")
	}

	t.Setenv("TEST_AUTH_ENABLED", "true")
	t.Setenv("TEST_AUTH_ISSUER", "https://login.example.com")
	t.Setenv("TEST_AUTH_CLIENT", "docintel")

	cfg := middleware.AuthConfig{}
	err := cfg.Finalize(&middleware.AuthEnv{
		Enabled:  "TEST_AUTH_ENABLED",
		Issuer:   "TEST_AUTH_ISSUER",
		ClientID: "TEST_AUTH_CLIENT",
	})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if !cfg.Enabled || cfg.Issuer != "https://login.example.com" || cfg.ClientID != "docintel" {
		t.Errorf("env not applied: %+v", cfg)
	}
}
