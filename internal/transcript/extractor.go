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

// DocumentExtractor fetches per-page text for a PDF reference from the
// extraction service. Pages map onto segments the same way caption blocks
// do, just with page numbers instead of timestamps.
type DocumentExtractor struct {
	baseURL string
	client  *http.Client
}

func NewDocumentExtractor(baseURL string, timeout time.Duration) *DocumentExtractor {
	return &DocumentExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *DocumentExtractor) Name() string { return "extraction" }

func (e *DocumentExtractor) Fetch(ctx context.Context, ref string) ([]text.Segment, error) {
	reqBody, _ := json.Marshal(map[string]string{"content_reference": ref})

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/extract", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoTranscript
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction api error: %d", resp.StatusCode)
	}

	var body struct {
		Pages []struct {
			PageNumber int    `json:"page_number"`
			Text       string `json:"text"`
		} `json:"pages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	segments := make([]text.Segment, 0, len(body.Pages))
	for _, p := range body.Pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		segments = append(segments, text.Segment{
			Text:     p.Text,
			Position: text.Position{PageNumber: p.PageNumber},
		})
	}
	if len(segments) == 0 {
		return nil, ErrNoTranscript
	}
	return segments, nil
}
