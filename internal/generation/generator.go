package generation

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Request is one call to a script generation backend. Backends constrain
// the output to the script JSON schema themselves.
type Request struct {
	SystemInstruction string
	Prompt            string
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// RateLimitError marks a backend error as a rate-limit signal.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return "rate limited: " + e.Err.Error()
}

func (e *RateLimitError) Unwrap() error { return e.Err }

var retryHintPattern = regexp.MustCompile(`Please retry in ([0-9.]+)s`)

// RetryHint extracts the server-suggested wait from an error message,
// rounded up to the millisecond.
func RetryHint(msg string) (time.Duration, bool) {
	m := retryHintPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(math.Ceil(secs*1000)) * time.Millisecond, true
}

func classify(err error) (bool, time.Duration) {
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		return false, 0
	}
	hint, _ := RetryHint(err.Error())
	return true, hint
}
