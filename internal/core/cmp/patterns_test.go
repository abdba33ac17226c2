package cmp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates(texts ...string) []Candidate[int] {
	out := make([]Candidate[int], len(texts))
	for i, t := range texts {
		out[i] = Candidate[int]{Text: t, Element: i}
	}
	return out
}

func TestFindMatchingFirstMatchWins(t *testing.T) {
	got, err := FindMatching(
		candidates("Mehr erfahren", "Alle akzeptieren", "Accept all"),
		Vocabulary.Accept, Vocabulary.Prefs,
	)
	require.NoError(t, err)
	assert.Equal(t, "Alle akzeptieren", got.Text)
	assert.Equal(t, 1, got.Element)
}

func TestFindMatchingCaseInsensitive(t *testing.T) {
	got, err := FindMatching(
		candidates("AGREE & CLOSE"),
		Vocabulary.Accept, nil,
	)
	require.NoError(t, err)
	assert.Equal(t, "AGREE & CLOSE", got.Text)
}

func TestFindMatchingAvoidFallback(t *testing.T) {
	// No candidate matches "save", but filtering out the accept-style ones
	// leaves exactly one survivor.
	got, err := FindMatching(
		candidates("Accept all", "Refuse", "Agree"),
		Vocabulary.Save, Vocabulary.Accept,
	)
	require.NoError(t, err)
	assert.Equal(t, "Refuse", got.Text)
}

func TestFindMatchingAvoidFallbackNeedsUniqueSurvivor(t *testing.T) {
	_, err := FindMatching(
		candidates("Continue", "Proceed", "Agree"),
		Vocabulary.Save, Vocabulary.Accept,
	)
	var noMatch *NoMatchError
	require.ErrorAs(t, err, &noMatch)
	assert.Equal(t, []string{"Continue", "Proceed", "Agree"}, noMatch.Texts)
}

func TestFindMatchingSingleCandidateNeverFallsBack(t *testing.T) {
	// A lone candidate was never ambiguous, so the avoid filter must not
	// promote it.
	_, err := FindMatching(
		candidates("Continue"),
		Vocabulary.Save, Vocabulary.Accept,
	)
	var noMatch *NoMatchError
	require.ErrorAs(t, err, &noMatch)
}

func TestFindMatchingEmpty(t *testing.T) {
	_, err := FindMatching[int](nil, Vocabulary.Accept, Vocabulary.Prefs)
	var noMatch *NoMatchError
	require.True(t, errors.As(err, &noMatch))
	assert.Empty(t, noMatch.Texts)
}

func TestVocabularyGerman(t *testing.T) {
	assert.True(t, matchesAny(Vocabulary.Accept, "Alles erlauben"))
	assert.True(t, matchesAny(Vocabulary.Save, "Auswahl bestätigen"))
	assert.True(t, matchesAny(Vocabulary.LegInt, "Berechtigtes Interesse"))
	assert.True(t, matchesAny(Vocabulary.Gvl, "Unsere Partner"))
	assert.False(t, matchesAny(Vocabulary.Accept, "Einstellungen"))
}
