package terms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywords(t *testing.T) {
	got := Keywords("What did I say about the Lisbon trip? The trip was in May.")
	assert.Equal(t, []string{"say", "lisbon", "trip", "may"}, got)
}

func TestKeywords_SkipsStopwordsAndShortWords(t *testing.T) {
	assert.True(t, isStopword("remember"))
	assert.False(t, isStopword("lisbon"))
	assert.Empty(t, Keywords("Do you remember what I told you earlier?"))
	assert.Equal(t, []string{"jazz"}, Keywords("ok so I like jazz"))
}

func TestEntities(t *testing.T) {
	got := Entities("My sister Ana moved to Berlin. She works at Siemens with Ana.")
	assert.Equal(t, []string{"Ana", "Berlin", "Siemens"}, got)
}

func TestSalient(t *testing.T) {
	texts := []string{
		"Rex is my dog and Rex loves the beach in Porto.",
		"We took Rex to Porto for the weekend beach trip.",
	}
	got := Salient(texts, map[string]bool{"dog": true}, 4)
	assert.Equal(t, []string{"Porto", "Rex", "beach", "loves"}, got)
}

func TestSalient_Exclude(t *testing.T) {
	got := Salient([]string{"I love Kyoto in spring. Kyoto is calm."}, map[string]bool{"kyoto": true}, 3)
	assert.NotContains(t, got, "Kyoto")
	assert.NotContains(t, got, "kyoto")
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, Jaccard("User lives in Lisbon", "user LIVES in lisbon."), 1e-9)
	assert.InDelta(t, 0.0, Jaccard("cats", "dogs"), 1e-9)
	assert.InDelta(t, 0.5, Jaccard("a b", "a c b d"), 1e-9)
}
