// Package policy holds the pure admission and derivation rules shared by every
// chain registry. Nothing in here keeps state: the registry feeds it timestamps
// and counters read from storage and acts on the verdicts.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"
	"unicode/utf8"
)

// Admission bounds. These are protocol constants, not configuration.
// Length limits count characters, not bytes.
const (
	MaxPromptLen = 2000
	MaxModelLen  = 50

	RateLimitWindow  = 60 * time.Second
	MaxDailyRequests = 100

	RequestTimeout = 24 * time.Hour

	secondsPerDay = 86400
)

// ActivityEpoch is the fixed origin for day-index bucketing.
var ActivityEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrFeeOutOfRange fee outside the [min, max] bound
var ErrFeeOutOfRange = errors.New("fee out of range")

// ErrPromptEmpty prompt is empty
var ErrPromptEmpty = errors.New("prompt is empty")

// ErrPromptTooLong prompt exceeds MaxPromptLen
var ErrPromptTooLong = errors.New("prompt too long")

// ErrModelEmpty model is empty
var ErrModelEmpty = errors.New("model is empty")

// ErrModelTooLong model exceeds MaxModelLen
var ErrModelTooLong = errors.New("model too long")

// ErrTimestampBeforeEpoch timestamp predates the activity epoch
var ErrTimestampBeforeEpoch = errors.New("timestamp before epoch")

// ValidateFee returns ErrFeeOutOfRange unless min <= fee <= max.
func ValidateFee(fee, min, max *big.Int) error {
	if fee == nil || fee.Cmp(min) < 0 || fee.Cmp(max) > 0 {
		return ErrFeeOutOfRange
	}
	return nil
}

// ValidateInput checks the prompt and model against the protocol bounds.
func ValidateInput(prompt, model string) error {
	if prompt == "" {
		return ErrPromptEmpty
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLen {
		return ErrPromptTooLong
	}
	if model == "" {
		return ErrModelEmpty
	}
	if utf8.RuneCountInString(model) > MaxModelLen {
		return ErrModelTooLong
	}
	return nil
}

// CheckRateLimit returns true iff the per-account window has elapsed since the
// last accepted request. A zero lastRequestAt means no previous activity.
func CheckRateLimit(lastRequestAt, now time.Time, window time.Duration) bool {
	if lastRequestAt.IsZero() {
		return true
	}
	return !now.Before(lastRequestAt.Add(window))
}

// CheckDailyLimit returns true iff count < max.
func CheckDailyLimit(count, max int) bool {
	return count < max
}

// DayIndex returns the whole-day bucket of now relative to epoch.
func DayIndex(now, epoch time.Time) (int64, error) {
	if now.Before(epoch) {
		return 0, ErrTimestampBeforeEpoch
	}
	return int64(now.Sub(epoch).Seconds()) / secondsPerDay, nil
}

// DeriveRequestID produces the deterministic request identifier. Identical
// inputs always yield the identical id, which makes retries idempotent at the
// id level and keeps test fixtures stable.
func DeriveRequestID(requester, prompt, model string, now time.Time, nonce uint64) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s|%s|%s|%d|%d", requester, prompt, model, now.Unix(), nonce)
	return hex.EncodeToString(h.Sum(nil))
}

// DeriveOutputHash is the digest stored on fulfillment and recomputed on
// independent re-verification.
func DeriveOutputHash(output string) string {
	sum := sha256.Sum256([]byte(output))
	return hex.EncodeToString(sum[:])
}

// IsExpired returns true iff now is strictly past createdAt + timeout.
func IsExpired(createdAt, now time.Time, timeout time.Duration) bool {
	return now.After(createdAt.Add(timeout))
}
