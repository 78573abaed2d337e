package voice

import "strings"

// Classification of a confirmation-call transcript.
type Classification string

const (
	TranscriptConfirmed Classification = "confirmed"
	TranscriptRejected  Classification = "rejected"
	TranscriptUnclear   Classification = "unclear"
)

// TranscriptClassifier decides whether a transcript carries an order
// confirmation.
type TranscriptClassifier interface {
	Classify(transcript string) Classification
}

// KeywordClassifier is a bounded keyword-count heuristic over mixed
// Hindi/English transcripts. A strict majority of affirmative tokens
// confirms; any negative signal without that majority rejects; no
// signal at all is unclear. Ambiguity never confirms, since a false
// positive ships an unconfirmed order.
type KeywordClassifier struct {
	positive []string
	negative []string
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		positive: []string{"yes", "confirm", "haan", "theek", "ok", "okay", "proceed", "correct", "sure"},
		negative: []string{"no", "cancel", "nahi", "wrong", "incorrect", "stop", "reject"},
	}
}

func (c *KeywordClassifier) Classify(transcript string) Classification {
	lower := strings.ToLower(transcript)

	var positives, negatives int
	for _, kw := range c.positive {
		positives += strings.Count(lower, kw)
	}
	for _, kw := range c.negative {
		negatives += strings.Count(lower, kw)
	}

	switch {
	case positives > negatives:
		return TranscriptConfirmed
	case negatives > 0:
		return TranscriptRejected
	default:
		return TranscriptUnclear
	}
}
