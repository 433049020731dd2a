package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Metadata is the subset of provider metadata ingestion cares about.
type Metadata struct {
	Title    string
	Duration int
	Link     string
}

// MetadataClient fetches video metadata from the media platform API.
type MetadataClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewMetadataClient(baseURL, token string, timeout time.Duration) *MetadataClient {
	return &MetadataClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *MetadataClient) GetMetadata(ctx context.Context, videoID string) (Metadata, error) {
	url := fmt.Sprintf("%s/videos/%s", c.baseURL, videoID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return Metadata{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("metadata api error: %d", resp.StatusCode)
	}

	var body struct {
		Name     string `json:"name"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Duration int    `json:"duration"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Metadata{}, err
	}

	title := body.Name
	if title == "" {
		title = body.Title
	}
	if title == "" && body.Link != "" {
		parts := strings.Split(strings.TrimRight(body.Link, "/"), "/")
		title = parts[len(parts)-1]
	}
	if title == "" {
		title = "video_" + videoID
	}

	return Metadata{Title: title, Duration: body.Duration, Link: body.Link}, nil
}
