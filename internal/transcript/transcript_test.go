package transcript_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursemind/internal/text"
	"coursemind/internal/transcript"
)

type stubProvider struct {
	name     string
	segments []text.Segment
	err      error
	calls    int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(ctx context.Context, ref string) ([]text.Segment, error) {
	s.calls++
	return s.segments, s.err
}

func seg(t string) text.Segment { return text.Segment{Text: t} }

func TestAcquire_FirstProviderWins(t *testing.T) {
	primary := &stubProvider{name: "captions", segments: []text.Segment{seg("hello")}}
	secondary := &stubProvider{name: "transcription"}

	segments, method, err := transcript.Acquire(context.Background(), []transcript.Provider{primary, secondary}, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, "captions", method)
	assert.Len(t, segments, 1)
	assert.Equal(t, 0, secondary.calls)
}

func TestAcquire_FallsBackOnError(t *testing.T) {
	primary := &stubProvider{name: "captions", err: transcript.ErrNoTranscript}
	secondary := &stubProvider{name: "transcription", segments: []text.Segment{seg("from audio")}}

	segments, method, err := transcript.Acquire(context.Background(), []transcript.Provider{primary, secondary}, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, "transcription", method)
	assert.Equal(t, "from audio", segments[0].Text)
}

func TestAcquire_FallsBackOnEmptyResult(t *testing.T) {
	primary := &stubProvider{name: "captions"} // nil segments, nil error
	secondary := &stubProvider{name: "transcription", segments: []text.Segment{seg("x")}}

	_, method, err := transcript.Acquire(context.Background(), []transcript.Provider{primary, secondary}, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, "transcription", method)
}

func TestAcquire_AllProvidersFail(t *testing.T) {
	primary := &stubProvider{name: "captions", err: errors.New("api down")}
	secondary := &stubProvider{name: "transcription", err: transcript.ErrProviderUnavailable}

	_, _, err := transcript.Acquire(context.Background(), []transcript.Provider{primary, secondary}, "vid-1")
	assert.ErrorIs(t, err, transcript.ErrNoTranscript)
	// The provider failures stay matchable so callers can detect an outage.
	assert.ErrorIs(t, err, transcript.ErrProviderUnavailable)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}
