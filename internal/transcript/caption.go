package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coursemind/internal/text"
)

// CaptionProvider pulls existing caption tracks from the media platform.
// It is the cheap primary source: no audio processing involved.
type CaptionProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewCaptionProvider(baseURL, token string, timeout time.Duration) *CaptionProvider {
	return &CaptionProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *CaptionProvider) Name() string { return "captions" }

func (p *CaptionProvider) Fetch(ctx context.Context, videoID string) ([]text.Segment, error) {
	link, err := p.firstTrackLink(ctx, videoID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("caption download error: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	segments := ParseSRT(string(raw))
	if len(segments) == 0 {
		return nil, ErrNoTranscript
	}
	return segments, nil
}

func (p *CaptionProvider) firstTrackLink(ctx context.Context, videoID string) (string, error) {
	url := fmt.Sprintf("%s/videos/%s/texttracks", p.baseURL, videoID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("texttracks api error: %d", resp.StatusCode)
	}

	var body struct {
		Data []struct {
			Link string `json:"link"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	// First available track wins; language selection is the platform's
	// default ordering.
	if len(body.Data) == 0 || body.Data[0].Link == "" {
		return "", ErrNoTranscript
	}
	return body.Data[0].Link, nil
}
