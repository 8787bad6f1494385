// Package codes allocates human-readable possession codes of the form PREFIX-YYYYMMDD-NNN.
//
// Allocators hand out numbers from an atomic per-day counter; Reserve adds a bounded
// insert-retry loop on top so a counter that fell behind the table (restored backup,
// flushed Redis, manual insert) skips forward instead of failing the request.
package codes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultMaxAttempts bounds Reserve when the caller passes a non-positive limit.
const DefaultMaxAttempts = 5

var (
	// ErrCodeTaken is returned by a Reserve insert callback when the code is already used.
	ErrCodeTaken = errors.New("possession code already taken")
	// ErrExhausted is returned when every attempt collided.
	ErrExhausted = errors.New("possession code allocation exhausted")
)

// Allocator hands out the next code for the current calendar day.
type Allocator interface {
	Allocate(ctx context.Context) (string, error)
}

// DayPrefix returns PREFIX-YYYYMMDD for day (in UTC).
func DayPrefix(prefix string, day time.Time) string {
	return fmt.Sprintf("%s-%s", prefix, day.UTC().Format("20060102"))
}

// Format builds a full code; the sequence is zero-padded to three digits.
func Format(dayPrefix string, seq int) string {
	return fmt.Sprintf("%s-%03d", dayPrefix, seq)
}

// Reserver wraps an Allocator with a bounded insert-retry loop.
type Reserver struct {
	Allocator   Allocator
	MaxAttempts int
	// OnRetry, when set, runs after every collision.
	OnRetry func()
}

// Reserve allocates a code and hands it to insert, retrying with a fresh allocation while
// insert reports ErrCodeTaken. Any other insert error is returned as-is.
func (r *Reserver) Reserve(ctx context.Context, insert func(code string) error) (string, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		code, err := r.Allocator.Allocate(ctx)
		if err != nil {
			return "", err
		}
		err = insert(code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return "", err
		}
		log.Warn().Str("code", code).Int("attempt", attempt).Msg("possession code collision, reallocating")
		if r.OnRetry != nil {
			r.OnRetry()
		}
	}
	return "", ErrExhausted
}
