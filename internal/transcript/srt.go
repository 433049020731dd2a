package transcript

import (
	"regexp"
	"strings"

	"coursemind/internal/text"
)

// The cue body is a run of non-empty lines so an empty cue cannot bleed into
// the next block's index and timestamp.
var srtBlockPattern = regexp.MustCompile(
	`(\d+)\s*\n(\d{2}:\d{2}:\d{2})[,.]\d{3}\s*-->\s*(\d{2}:\d{2}:\d{2})[,.]\d{3}[^\n]*\n?((?:[^\n]+\n?)*)`)

// ParseSRT parses SRT (and tolerant-enough VTT) caption text into timed
// segments. Milliseconds are dropped; a chunk's position only needs
// second-level resolution. Falls back to line scanning when the regex finds
// nothing, which handles sloppy caption files missing block numbers.
func ParseSRT(raw string) []text.Segment {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	var segments []text.Segment
	for _, m := range srtBlockPattern.FindAllStringSubmatch(raw, -1) {
		body := strings.TrimSpace(strings.ReplaceAll(m[4], "\n", " "))
		if body == "" {
			continue
		}
		segments = append(segments, text.Segment{
			Text:     body,
			Position: text.Position{TimestampStart: m[2], TimestampEnd: m[3]},
		})
	}

	if len(segments) == 0 {
		segments = parseSRTFallback(raw)
	}
	return segments
}

func parseSRTFallback(raw string) []text.Segment {
	var segments []text.Segment

	for _, block := range strings.Split(raw, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}

		timeLine := ""
		var textLines []string
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timeLine = line
				textLines = lines[i+1:]
				break
			}
		}
		if timeLine == "" {
			continue
		}

		startRaw, endRaw, _ := strings.Cut(timeLine, "-->")
		start := trimFraction(strings.TrimSpace(startRaw))
		end := trimFraction(strings.TrimSpace(endRaw))

		var parts []string
		for _, line := range textLines {
			if s := strings.TrimSpace(line); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			continue
		}

		segments = append(segments, text.Segment{
			Text:     strings.Join(parts, " "),
			Position: text.Position{TimestampStart: start, TimestampEnd: end},
		})
	}
	return segments
}

func trimFraction(ts string) string {
	if i := strings.IndexAny(ts, ",."); i >= 0 {
		return ts[:i]
	}
	return ts
}
