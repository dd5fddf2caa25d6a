// Package terms holds the word-level text helpers shared by intent
// classification, multi-hop re-querying and fact deduplication.
package terms

import (
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`a about above after again all also am an and any are as at be because been
		before being below between both but by can could did do does doing down during each few for from
		further had has have having he her here hers him his how i if in into is it its itself just me
		more most my myself no nor not now of off on once only or other our ours out over own same she
		should so some such than that the their theirs them then there these they this those through to
		too under until up very was we were what when where which while who whom why will with would you
		your yours yourself ok okay yes yeah hey hi hello please thanks thank tell know think like really
		get got want let lets dont didnt cant im ive youre thats whats
		remember recall said told mentioned earlier previously discussed`) {
		stopwords[w] = true
	}
}

// isStopword reports whether w (lowercase) carries no retrieval signal.
func isStopword(w string) bool { return stopwords[w] }

// Words splits text into lowercase alphanumeric words, dropping
// apostrophes so "don't" becomes "dont".
func Words(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "'", "")
	text = strings.ReplaceAll(text, "’", "")
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Keywords returns the distinct non-stopword words of text longer than two
// characters, in first-seen order.
func Keywords(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range Words(text) {
		if len(w) <= 2 || isStopword(w) || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// Entities returns capitalised words that do not start a sentence, in
// first-seen order. "I" and stopwords are skipped.
func Entities(text string) []string {
	seen := map[string]bool{}
	var out []string
	sentenceStart := true
	for _, raw := range strings.Fields(text) {
		w := strings.TrimFunc(raw, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) })
		if w != "" {
			first := []rune(w)[0]
			lower := strings.ToLower(w)
			if !sentenceStart && unicode.IsUpper(first) && len(w) > 1 && !isStopword(lower) && !seen[lower] {
				seen[lower] = true
				out = append(out, w)
			}
			sentenceStart = false
		}
		if strings.HasSuffix(raw, ".") || strings.HasSuffix(raw, "?") || strings.HasSuffix(raw, "!") {
			sentenceStart = true
		}
	}
	return out
}

// Salient ranks the terms of texts for re-querying: entities first (by
// frequency), then keywords by frequency. Ties break alphabetically. Terms
// in exclude (lowercase) are skipped. At most limit terms are returned.
func Salient(texts []string, exclude map[string]bool, limit int) []string {
	entityCount := map[string]int{}
	entityForm := map[string]string{}
	wordCount := map[string]int{}

	for _, t := range texts {
		for _, e := range Entities(t) {
			l := strings.ToLower(e)
			entityCount[l]++
			if _, ok := entityForm[l]; !ok {
				entityForm[l] = e
			}
		}
		for _, w := range Keywords(t) {
			wordCount[w]++
		}
	}

	rank := func(counts map[string]int) []string {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			if !exclude[k] {
				keys = append(keys, k)
			}
		}
		sort.Slice(keys, func(i, j int) bool {
			if counts[keys[i]] != counts[keys[j]] {
				return counts[keys[i]] > counts[keys[j]]
			}
			return keys[i] < keys[j]
		})
		return keys
	}

	var out []string
	used := map[string]bool{}
	for _, l := range rank(entityCount) {
		if len(out) >= limit {
			return out
		}
		out = append(out, entityForm[l])
		used[l] = true
	}
	for _, w := range rank(wordCount) {
		if len(out) >= limit {
			break
		}
		if used[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Jaccard returns the word-set overlap of a and b in [0,1].
func Jaccard(a, b string) float64 {
	sa := set(Words(a))
	sb := set(Words(b))
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for w := range sa {
		if sb[w] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func set(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
