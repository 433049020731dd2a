package text

import (
	"errors"
	"strings"
)

var ErrInvalidWindow = errors.New("chunk overlap must satisfy 0 < overlap < chunk size")

// Position locates a span of source material. Timestamps are set for video
// transcripts ("HH:MM:SS"), PageNumber for paginated documents. A chunk that
// straddles several segments carries the span's start.
type Position struct {
	TimestampStart string `json:"timestamp_start,omitempty"`
	TimestampEnd   string `json:"timestamp_end,omitempty"`
	PageNumber     int    `json:"page_number,omitempty"`
}

// Segment is one timed or paginated unit of source text, as delivered by a
// transcript provider or document extractor.
type Segment struct {
	Text     string
	Position Position
}

type Chunk struct {
	Content       string
	SequenceIndex int
	CharStart     int
	CharEnd       int
	Position      Position
}

type span struct {
	start, end int
	pos        Position
}

// Split slides a window of chunkSize characters over the normalized full text
// of segments, advancing by chunkSize-overlap, and maps each chunk's character
// span back to segment positions. Empty input yields no chunks and no error:
// there is simply nothing to ingest.
func Split(segments []Segment, chunkSize, overlap int) ([]Chunk, error) {
	if overlap <= 0 || overlap >= chunkSize {
		return nil, ErrInvalidWindow
	}

	fullText, spans := join(segments)
	n := len(fullText)
	if n == 0 {
		return nil, nil
	}

	advance := chunkSize - overlap
	var chunks []Chunk
	for start := 0; start < n; start += advance {
		end := start + chunkSize
		if end > n {
			end = n
		}

		chunks = append(chunks, Chunk{
			Content:       string(fullText[start:end]),
			SequenceIndex: len(chunks),
			CharStart:     start,
			CharEnd:       end,
			Position:      locate(start, end, spans),
		})

		if end == n {
			break
		}
	}
	return chunks, nil
}

// join builds the normalized full text (segments trimmed, space-separated)
// as a rune slice and records each segment's rune span within it. Rune
// offsets keep the window from splitting a multibyte character.
func join(segments []Segment) ([]rune, []span) {
	var runes []rune
	var spans []span

	for _, seg := range segments {
		text := strings.Join(strings.Fields(seg.Text), " ")
		if text == "" {
			continue
		}
		if len(runes) > 0 {
			runes = append(runes, ' ')
		}
		start := len(runes)
		runes = append(runes, []rune(text)...)
		spans = append(spans, span{start: start, end: len(runes), pos: seg.Position})
	}
	return runes, spans
}

// locate maps a chunk's character span to a Position: timestamp start from the
// first overlapping segment, timestamp end from the last, page from the first.
func locate(charStart, charEnd int, spans []span) Position {
	var overlapping []span
	for _, s := range spans {
		if s.end <= charStart || s.start >= charEnd {
			continue
		}
		overlapping = append(overlapping, s)
	}
	if len(overlapping) == 0 {
		return Position{}
	}

	first := overlapping[0].pos
	last := overlapping[len(overlapping)-1].pos
	return Position{
		TimestampStart: first.TimestampStart,
		TimestampEnd:   last.TimestampEnd,
		PageNumber:     first.PageNumber,
	}
}
