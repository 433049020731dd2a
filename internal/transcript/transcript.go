package transcript

import (
	"context"
	"errors"
	"log/slog"

	"coursemind/internal/text"
)

// ErrNoTranscript means a provider responded but had no usable transcript
// for the reference. The next provider in the chain gets a try.
var ErrNoTranscript = errors.New("no transcript available")

// ErrProviderUnavailable means the provider itself could not be reached.
var ErrProviderUnavailable = errors.New("transcript provider unavailable")

// Provider turns a content reference into ordered timed segments. Caption
// and audio-transcription providers are interchangeable behind this
// interface.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, ref string) ([]text.Segment, error)
}

// Acquire walks the providers in priority order and returns the first
// non-empty transcript together with the winning provider's name. Only when
// every provider fails does it give up with ErrNoTranscript, joined with the
// per-provider failures so callers can still match ErrProviderUnavailable.
func Acquire(ctx context.Context, providers []Provider, ref string) ([]text.Segment, string, error) {
	var errs []error
	for _, p := range providers {
		segments, err := p.Fetch(ctx, ref)
		if err != nil {
			slog.WarnContext(ctx, "transcript provider failed, trying next",
				"provider", p.Name(), "ref", ref, "error", err)
			errs = append(errs, err)
			continue
		}
		if len(segments) == 0 {
			continue
		}
		return segments, p.Name(), nil
	}
	return nil, "", errors.Join(append(errs, ErrNoTranscript)...)
}
