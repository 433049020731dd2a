package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"coursemind/internal/text"
)

// Attribution cites one source used in an answer. It is emitted for every
// distinct source in the selection, regardless of how much of that source's
// text survived budget truncation.
type Attribution struct {
	SourceID       string        `json:"source_id"`
	SourceTitle    string        `json:"source_title"`
	Position       text.Position `json:"position"`
	RelevanceScore float32       `json:"relevance_score"`
}

type Assembled struct {
	Context      string        `json:"context"`
	Attributions []Attribution `json:"attributions"`
}

type AssembleOptions struct {
	CharBudget int
	// PrioritySources biases block ordering toward the sources matched by the
	// previous turn, used when the query looks like a follow-up.
	PrioritySources []string
}

// Assembler expands the selection with sibling chunks for narrative
// continuity and merges everything into one bounded context block.
type Assembler struct {
	store         VectorStore
	siblingWindow int
}

func NewAssembler(store VectorStore, siblingWindow int) *Assembler {
	if siblingWindow <= 0 {
		siblingWindow = 1
	}
	return &Assembler{store: store, siblingWindow: siblingWindow}
}

type sourceGroup struct {
	id     string
	chunks map[int]SearchResult
	best   SearchResult
}

func (a *Assembler) Assemble(ctx context.Context, selected []SearchResult, opts AssembleOptions) (Assembled, error) {
	if len(selected) == 0 {
		return Assembled{}, nil
	}

	groups := map[string]*sourceGroup{}
	var order []string
	for _, r := range selected {
		g, ok := groups[r.SourceID]
		if !ok {
			g = &sourceGroup{id: r.SourceID, chunks: map[int]SearchResult{}, best: r}
			groups[r.SourceID] = g
			order = append(order, r.SourceID)
		}
		g.chunks[r.SequenceIndex] = r
		if r.Score > g.best.Score {
			g.best = r
		}
	}

	// Sibling expansion: neighbours keep their place even when their own
	// score fell below threshold.
	for _, r := range selected {
		siblings, err := a.store.ChunksBySource(ctx, r.SourceID, r.SequenceIndex-a.siblingWindow, r.SequenceIndex+a.siblingWindow)
		if err != nil {
			return Assembled{}, err
		}
		g := groups[r.SourceID]
		for _, sib := range siblings {
			if _, seen := g.chunks[sib.SequenceIndex]; !seen {
				g.chunks[sib.SequenceIndex] = sib
			}
		}
	}

	orderSources(order, groups, opts.PrioritySources)

	var b strings.Builder
	remaining := opts.CharBudget
	attributions := make([]Attribution, 0, len(order))

	for _, id := range order {
		g := groups[id]
		chunks := sortedBySequence(g.chunks)

		attributions = append(attributions, Attribution{
			SourceID:       g.best.SourceID,
			SourceTitle:    g.best.SourceTitle,
			Position:       g.best.Position,
			RelevanceScore: g.best.Score,
		})

		// The first chunk of every source is written even under pressure,
		// truncated to whatever budget is left.
		block := blockLabel(chunks[0]) + "\n" + chunks[0].Content
		if b.Len() > 0 {
			block = "\n\n" + block
		}
		remaining = writeCapped(&b, block, remaining)

		for _, c := range chunks[1:] {
			piece := "\n" + c.Content
			if len(piece) > remaining {
				break
			}
			remaining = writeCapped(&b, piece, remaining)
		}
	}

	return Assembled{Context: b.String(), Attributions: attributions}, nil
}

func orderSources(order []string, groups map[string]*sourceGroup, priority []string) {
	rank := func(id string) int {
		for i, p := range priority {
			if p == id {
				return i
			}
		}
		return len(priority)
	}
	sort.SliceStable(order, func(i, j int) bool {
		ri, rj := rank(order[i]), rank(order[j])
		if ri != rj {
			return ri < rj
		}
		return groups[order[i]].best.Score > groups[order[j]].best.Score
	})
}

func sortedBySequence(m map[int]SearchResult) []SearchResult {
	out := make([]SearchResult, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceIndex < out[j].SequenceIndex })
	return out
}

func writeCapped(b *strings.Builder, s string, remaining int) int {
	if remaining <= 0 {
		return 0
	}
	if len(s) > remaining {
		// Back the cut up to a rune boundary so truncation never emits a
		// partial multibyte character.
		cut := remaining
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	b.WriteString(s)
	return remaining - len(s)
}

func blockLabel(r SearchResult) string {
	switch r.SourceType {
	case "video":
		if r.Position.TimestampStart != "" {
			return fmt.Sprintf("[Video: %s, %s-%s]", r.SourceTitle, r.Position.TimestampStart, r.Position.TimestampEnd)
		}
		return fmt.Sprintf("[Video: %s]", r.SourceTitle)
	case "pdf":
		if r.Position.PageNumber > 0 {
			return fmt.Sprintf("[PDF: %s, Page %d]", r.SourceTitle, r.Position.PageNumber)
		}
		return fmt.Sprintf("[PDF: %s]", r.SourceTitle)
	default:
		return fmt.Sprintf("[%s]", r.SourceTitle)
	}
}
