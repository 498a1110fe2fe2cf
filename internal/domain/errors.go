package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// FetchReason classifies a failed price feed call.
type FetchReason int

const (
	FetchTimeout FetchReason = iota + 1
	FetchBadStatus
	FetchTransport
)

func (r FetchReason) String() string {
	switch r {
	case FetchTimeout:
		return "timeout"
	case FetchBadStatus:
		return "bad status"
	case FetchTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// FetchError is returned by the remote price feed client. The client never
// retries; IsRetriable tells the caller whether trying again makes sense.
type FetchError struct {
	Op         string // "prices", "gold"
	Region     Region
	Reason     FetchReason
	StatusCode int // set when Reason is FetchBadStatus
	Err        error
}

func (e *FetchError) Error() string {
	msg := "fetch " + e.Op + " on " + e.Region.String() + ": " + e.Reason.String()
	if e.Reason == FetchBadStatus {
		msg += fmt.Sprintf(" (%d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRetriable is true for timeouts, transport errors, 429 and 5xx.
func (e *FetchError) IsRetriable() bool {
	switch e.Reason {
	case FetchTimeout, FetchTransport:
		return true
	case FetchBadStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrCatalogLookupMiss is returned when an item identifier is unknown to the catalog.
	// Always a user input error.
	ErrCatalogLookupMiss = errors.New("item not found in catalog")

	// ErrMissingRecipe is returned when a catalog entry has no crafting requirements.
	ErrMissingRecipe = errors.New("item is not craftable")

	// ErrCatalogUnavailable is returned when the catalog cannot be queried at all.
	ErrCatalogUnavailable = errors.New("item catalog unavailable")

	// ErrNoPriceData is returned when the feed answered but has no usable record.
	ErrNoPriceData = errors.New("no price data")

	// ErrInvalidRegion is returned for regions outside the supported set.
	ErrInvalidRegion = errors.New("invalid region")

	// ErrNotSellable is returned when the black market does not buy an item.
	ErrNotSellable = errors.New("item is not sellable on the black market")

	// ErrInvalidInput is returned for requests the calculators cannot take,
	// such as negative resource counts.
	ErrInvalidInput = errors.New("invalid input")
)
