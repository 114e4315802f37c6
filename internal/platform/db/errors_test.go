package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"no rows", pgx.ErrNoRows, apperr.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, apperr.ErrConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, apperr.ErrNotFound},
		{"row security", &pgconn.PgError{Code: "42501"}, apperr.ErrForbidden},
		{"check", &pgconn.PgError{Code: "23514"}, apperr.ErrValidation},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, apperr.ErrUnavailable},
		{"connection failure", &pgconn.PgError{Code: "08006"}, apperr.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MapError(tc.err, "profile")
			if !errors.Is(got, tc.kind) {
				t.Errorf("MapError(%v) = %v, want kind %v", tc.err, got, tc.kind)
			}
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	if MapError(nil, "profile") != nil {
		t.Error("expected nil")
	}
}

func TestMapError_ContextPassThrough(t *testing.T) {
	if got := MapError(context.Canceled, "profile"); got != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", got)
	}
}

func TestMapError_Unclassified(t *testing.T) {
	got := MapError(errors.New("boom"), "profile")
	if apperr.Code(got) != "internal" {
		t.Errorf("expected unclassified error, got %v", got)
	}
}
