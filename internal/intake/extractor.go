package intake

import (
	"fmt"
	"regexp"
	"strings"
)

// Webhook payloads from the media platform come in several shapes depending
// on the event type and API version. Each extractor knows one shape; they are
// tried in order and the first hit wins.

var videoURIPattern = regexp.MustCompile(`/videos/(\d{6,20})(?:[/?#]|$)`)

var videoIDPattern = regexp.MustCompile(`^\d{6,20}$`)

type extractor func(payload map[string]any) (string, bool)

var extractors = []extractor{
	extractFromURIFields,
	extractFromIDFields,
	extractFromNestedObjects,
}

// ExtractVideoID pulls the numeric video id out of an event payload,
// regardless of which shape the platform sent.
func ExtractVideoID(payload map[string]any) (string, error) {
	for _, extract := range extractors {
		if id, ok := extract(payload); ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("no video reference in payload")
}

func extractFromURIFields(payload map[string]any) (string, bool) {
	for _, key := range []string{"uri", "resource_uri", "link", "url"} {
		raw, ok := payload[key].(string)
		if !ok || !strings.Contains(raw, "/videos/") {
			continue
		}
		if m := videoURIPattern.FindStringSubmatch(raw); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func extractFromIDFields(payload map[string]any) (string, bool) {
	for _, key := range []string{"video_id", "id", "clip_id", "videoId"} {
		switch v := payload[key].(type) {
		case string:
			if videoIDPattern.MatchString(v) {
				return v, true
			}
		case float64:
			// JSON numbers decode as float64; ids are integral.
			id := fmt.Sprintf("%.0f", v)
			if videoIDPattern.MatchString(id) {
				return id, true
			}
		}
	}
	return "", false
}

func extractFromNestedObjects(payload map[string]any) (string, bool) {
	for _, key := range []string{"clip", "video", "resource", "data"} {
		nested, ok := payload[key].(map[string]any)
		if !ok {
			continue
		}
		if id, ok := extractFromURIFields(nested); ok {
			return id, true
		}
		if id, ok := extractFromIDFields(nested); ok {
			return id, true
		}
	}
	return "", false
}
