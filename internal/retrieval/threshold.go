package retrieval

import "fmt"

// Confidence labels how trustworthy the selected context is. Similarity
// scores are domain-sensitive (jargon-heavy material scores lower than
// conversational text for equally valid matches), so a single cutoff would
// produce false negatives; the tiered policy prefers strong matches but
// degrades gracefully.
type Confidence string

const (
	ConfidenceHigh            Confidence = "HIGH"
	ConfidenceLow             Confidence = "LOW"
	ConfidenceMinimum         Confidence = "MINIMUM"
	ConfidenceAbsoluteMinimum Confidence = "ABSOLUTE_MINIMUM"
	ConfidenceNone            Confidence = "NONE"
)

// Tiers holds the similarity cutoffs, highest to lowest.
type Tiers struct {
	High            float32 `json:"tier_high"`
	Low             float32 `json:"tier_low"`
	Minimum         float32 `json:"tier_minimum"`
	AbsoluteMinimum float32 `json:"tier_absolute_minimum"`
}

func DefaultTiers() Tiers {
	return Tiers{High: 0.5, Low: 0.4, Minimum: 0.2, AbsoluteMinimum: 0.15}
}

// Validate enforces strictly descending cutoffs within (0,1).
func (t Tiers) Validate() error {
	if !(t.High > t.Low && t.Low > t.Minimum && t.Minimum > t.AbsoluteMinimum) {
		return fmt.Errorf("tiers must be strictly descending: %.2f > %.2f > %.2f > %.2f",
			t.High, t.Low, t.Minimum, t.AbsoluteMinimum)
	}
	if t.AbsoluteMinimum <= 0 || t.High >= 1 {
		return fmt.Errorf("tiers must lie inside (0,1)")
	}
	return nil
}

// SelectByConfidence applies the tier policy to results ranked descending by
// score. The first tier with any member wins and only its members are kept.
// When no tier is met but something still clears the absolute minimum, the
// single best result is returned rather than nothing: any plausible document
// beats an empty answer. Below the absolute minimum the selection is empty.
func SelectByConfidence(results []SearchResult, tiers Tiers) ([]SearchResult, Confidence) {
	levels := []struct {
		cutoff float32
		label  Confidence
	}{
		{tiers.High, ConfidenceHigh},
		{tiers.Low, ConfidenceLow},
		{tiers.Minimum, ConfidenceMinimum},
	}

	for _, level := range levels {
		var kept []SearchResult
		for _, r := range results {
			if r.Score >= level.cutoff {
				kept = append(kept, r)
			}
		}
		if len(kept) > 0 {
			return kept, level.label
		}
	}

	var best *SearchResult
	for i := range results {
		if results[i].Score >= tiers.AbsoluteMinimum && (best == nil || results[i].Score > best.Score) {
			best = &results[i]
		}
	}
	if best != nil {
		return []SearchResult{*best}, ConfidenceAbsoluteMinimum
	}
	return nil, ConfidenceNone
}
