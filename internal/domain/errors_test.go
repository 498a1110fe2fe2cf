package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestFetchError(t *testing.T) {
	baseErr := errors.New("context deadline exceeded")

	t.Run("timeout is retriable", func(t *testing.T) {
		err := &FetchError{Op: "prices", Region: RegionEurope, Reason: FetchTimeout, Err: baseErr}

		if !err.IsRetriable() {
			t.Error("Expected timeout to be retriable")
		}

		want := "fetch prices on europe: timeout: context deadline exceeded"
		if err.Error() != want {
			t.Errorf("Error message = %q, want %q", err.Error(), want)
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("bad status", func(t *testing.T) {
		tests := []struct {
			code      int
			retriable bool
		}{
			{404, false},
			{400, false},
			{429, true},
			{500, true},
			{503, true},
		}
		for _, tt := range tests {
			err := &FetchError{Op: "prices", Region: RegionWest, Reason: FetchBadStatus, StatusCode: tt.code}
			if err.IsRetriable() != tt.retriable {
				t.Errorf("status %d: IsRetriable = %v, want %v", tt.code, err.IsRetriable(), tt.retriable)
			}
		}
	})

	t.Run("IsRetriable helper through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("refresh: %w", &FetchError{Reason: FetchTimeout})
		if !IsRetriable(wrapped) {
			t.Error("IsRetriable should see through wrapping")
		}

		var fe *FetchError
		if !errors.As(wrapped, &fe) {
			t.Error("errors.As should find the FetchError")
		}

		if IsRetriable(errors.New("plain error")) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("missing value")
	err := &ConfigError{Field: "feed.base_url", Err: baseErr}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [feed.base_url]: missing value"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}

func TestSentinelsAreDistinguishable(t *testing.T) {
	miss := fmt.Errorf("T4_NOPE: %w", ErrCatalogLookupMiss)
	recipe := fmt.Errorf("T4_ORE: %w", ErrMissingRecipe)

	if errors.Is(miss, ErrMissingRecipe) || errors.Is(recipe, ErrCatalogLookupMiss) {
		t.Error("lookup miss and missing recipe must not match each other")
	}
	if IsRetriable(miss) || IsRetriable(recipe) {
		t.Error("catalog errors are never retriable")
	}
}
