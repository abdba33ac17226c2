package cmp

import (
	"fmt"
	"regexp"
	"strings"
)

// Patterns groups the button-text vocabularies used to tell apart the roles
// of CMP dialog controls. English and German, matched case-insensitively.
type Patterns struct {
	Accept []*regexp.Regexp
	Prefs  []*regexp.Regexp
	LegInt []*regexp.Regexp
	Gvl    []*regexp.Regexp
	Save   []*regexp.Regexp
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile("(?i)"+p))
	}
	return out
}

// Raw pattern sources; the generic strategy joins them into playwright
// text=// selectors, so they must stay valid in both regexp dialects.
var (
	acceptPatterns = []string{
		`accept`, `agree`, `allow`, `got it`, `okay`,
		`akzeptieren`, `zustimmen`, `stimme zu`, `einverstanden`,
		`verstanden`, `erlauben`, `annehmen`,
	}
	prefsPatterns = []string{
		`settings`, `options`, `preferences`, `manage`, `customi[sz]e`,
		`more info`, `learn more`, `purposes`,
		`einstellungen`, `optionen`, `verwalten`, `anpassen`, `zwecke`,
		`mehr erfahren`,
	}
	legIntPatterns = []string{
		`legitimate interest`, `object`,
		`berechtigtes interesse`, `widersprechen`, `widerspruch`,
	}
	gvlPatterns = []string{
		`vendor`, `partner`, `anbieter`, `drittanbieter`,
	}
	savePatterns = []string{
		`save`, `confirm`, `submit`, `choices`,
		`speichern`, `bestätigen`, `übernehmen`, `auswahl`,
	}
)

var Vocabulary = Patterns{
	Accept: compileAll(acceptPatterns),
	Prefs:  compileAll(prefsPatterns),
	LegInt: compileAll(legIntPatterns),
	Gvl:    compileAll(gvlPatterns),
	Save:   compileAll(savePatterns),
}

// Candidate is a clickable element paired with its display text.
type Candidate[T any] struct {
	Text    string
	Element T
}

// NoMatchError reports that no candidate could be singled out; it carries all
// candidate texts for diagnostics.
type NoMatchError struct {
	Texts []string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no matching button found: [%s]", strings.Join(e.Texts, ", "))
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// FindMatching selects exactly one candidate. The first candidate in input
// order whose text hits a match pattern wins. Failing that, candidates
// hitting an avoid pattern are filtered out, and a unique survivor of an
// originally ambiguous set wins. Anything else is a NoMatchError.
func FindMatching[T any](candidates []Candidate[T], match, avoid []*regexp.Regexp) (Candidate[T], error) {
	for _, c := range candidates {
		if matchesAny(match, c.Text) {
			return c, nil
		}
	}

	var survivors []Candidate[T]
	for _, c := range candidates {
		if !matchesAny(avoid, c.Text) {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 1 && len(candidates) > 1 {
		return survivors[0], nil
	}

	texts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}
	var zero Candidate[T]
	return zero, &NoMatchError{Texts: texts}
}
