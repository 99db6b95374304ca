// Package musicid holds the external identification providers and the shared
// failure vocabulary the resolver uses to decide whether to continue the
// cascade, back off, or give up on a station cycle.
package musicid

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient      = errors.New("transient failure")
	ErrPermanentInput = errors.New("permanent input error")
	ErrConfiguration  = errors.New("configuration error")
	ErrDataConflict   = errors.New("data conflict")
	ErrNoMatch        = errors.New("no match")
	ErrTimeout        = errors.New("timeout")
	ErrBreakerOpen    = errors.New("circuit breaker open")
)

// Wrap builds an error message that includes provider context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, provider, operation, message string, err error) error {
	detail := buildDetail(provider, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether the cascade should count the error toward the
// circuit breaker and continue to the next step.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

// IsNoMatch reports a clean miss that carries no failure signal.
func IsNoMatch(err error) bool {
	return errors.Is(err, ErrNoMatch)
}

func buildDetail(provider, operation, message string) string {
	parts := make([]string, 0, 3)
	if provider = strings.TrimSpace(provider); provider != "" {
		parts = append(parts, provider)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "provider failure"
	}
	return strings.Join(parts, ": ")
}
