package intent

import (
	"context"
	"strings"

	"github.com/rcliao/lattice-memory/internal/model"
	"github.com/rcliao/lattice-memory/internal/terms"
)

var (
	recallCues = []string{
		"remember", "recall", "remind me", "earlier", "last time", "last week", "yesterday",
		"previously", "before", "you said", "you told me", "i told you", "i mentioned",
		"we discussed", "we talked", "did i", "what was", "what is my", "what's my", "whats my",
		"my name", "again", "back when", "the other day",
	}
	multiHopCues = []string{
		"compare", "relationship between", "related to", "relate to", "connection between",
		"connect", "both", "in common", "combine", "across", "and also", "how does that affect",
		"based on what", "given what", "everything about", "all the",
	}
	clarificationCues = []string{
		"what do you mean", "what did you mean", "can you explain", "explain that", "clarify",
		"elaborate", "i mean", "i meant", "huh", "say that again", "rephrase", "in other words",
		"what does that mean", "which one", "why is that", "why?", "how so", "come again",
	}
	followUpPronouns = map[string]bool{"it": true, "that": true, "this": true, "those": true, "these": true, "they": true}
)

// Heuristic is a zero-latency keyword/pattern classifier.
type Heuristic struct {
	// ShortMessageWords is the length at which a pronoun-led message that
	// follows an assistant turn reads as a clarification.
	ShortMessageWords int
}

// NewHeuristic returns a heuristic classifier with default thresholds.
func NewHeuristic() *Heuristic {
	return &Heuristic{ShortMessageWords: 6}
}

func (h *Heuristic) Classify(_ context.Context, message string, recent []model.Turn) (Result, error) {
	return h.classify(message, recent), nil
}

func (h *Heuristic) classify(message string, recent []model.Turn) Result {
	lower := " " + strings.ToLower(strings.TrimSpace(message)) + " "
	words := terms.Words(message)
	res := Result{Strategy: ModeHeuristic, Terms: keyTerms(message)}

	recall := countCues(lower, recallCues)
	multi := countCues(lower, multiHopCues)
	clarify := countCues(lower, clarificationCues)
	entities := len(terms.Entities(message))

	afterAssistant := len(recent) > 0 && recent[len(recent)-1].Role == model.RoleAssistant
	if clarify == 0 && afterAssistant && len(words) > 0 && len(words) <= h.ShortMessageWords && followUpPronouns[words[0]] {
		clarify = 1
	}

	switch {
	case clarify > 0 && recall == 0 && multi == 0:
		res.Intent = Clarification
		res.Confidence = confidence(clarify)
	case multi > 0 && (recall > 0 || entities >= 2):
		res.Intent = MultiHop
		res.Confidence = confidence(multi + recall)
	case recall > 0 && entities >= 3:
		res.Intent = MultiHop
		res.Confidence = confidence(recall)
	case recall > 0:
		res.Intent = Recall
		res.Confidence = confidence(recall)
	case multi > 0:
		res.Intent = MultiHop
		res.Confidence = 0.5
	default:
		res.Intent = NewTopic
		res.Confidence = 0.5
	}
	return res
}

// confidence maps a cue count to [0.6, 0.95].
func confidence(hits int) float64 {
	c := 0.45 + 0.15*float64(hits)
	if c > 0.95 {
		c = 0.95
	}
	return c
}

func countCues(lower string, cues []string) int {
	n := 0
	for _, c := range cues {
		if strings.Contains(lower, c) {
			n++
		}
	}
	return n
}

// keyTerms returns the message's entities followed by its keywords.
func keyTerms(message string) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range terms.Entities(message) {
		l := strings.ToLower(e)
		if !seen[l] {
			seen[l] = true
			out = append(out, e)
		}
	}
	for _, k := range terms.Keywords(message) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
