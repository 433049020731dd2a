package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coursemind/internal/text"
)

// AudioTranscriptionProvider asks the transcription service to extract and
// transcribe the video's audio. The expensive secondary source, used when no
// captions exist.
type AudioTranscriptionProvider struct {
	baseURL string
	client  *http.Client
}

func NewAudioTranscriptionProvider(baseURL string, timeout time.Duration) *AudioTranscriptionProvider {
	return &AudioTranscriptionProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *AudioTranscriptionProvider) Name() string { return "transcription" }

func (p *AudioTranscriptionProvider) Fetch(ctx context.Context, videoID string) ([]text.Segment, error) {
	reqBody, _ := json.Marshal(map[string]string{"video_id": videoID})

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/transcribe", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoTranscript
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription api error: %d", resp.StatusCode)
	}

	var body struct {
		Segments []struct {
			Text  string `json:"text"`
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	segments := make([]text.Segment, 0, len(body.Segments))
	for _, s := range body.Segments {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		segments = append(segments, text.Segment{
			Text:     s.Text,
			Position: text.Position{TimestampStart: s.Start, TimestampEnd: s.End},
		})
	}
	if len(segments) == 0 {
		return nil, ErrNoTranscript
	}
	return segments, nil
}
