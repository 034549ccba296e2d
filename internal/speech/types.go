// Package speech is the boundary to text-to-speech synthesizers. Providers
// stream encoded audio into a writer; measuring and caching the result is
// the caller's concern.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID = "eleven_multilingual_v2"
)

type Request struct {
	Text    string
	VoiceID string
	ModelID string
}

type Provider interface {
	Synthesize(ctx context.Context, req Request, w io.Writer) error
	// Extension is the file extension of the audio the provider writes.
	Extension() string
}

// StatusError is a non-success HTTP response from a synthesizer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("synthesizer returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// IsTransient reports rate-limit and auth hiccups, the only synthesizer
// errors worth retrying.
func IsTransient(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusTooManyRequests || se.StatusCode == http.StatusUnauthorized
}
