package collections

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admeasure/internal/config"
)

func writeCollection(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, "news-de", `["https://a.example/", "https://b.example/"]`)

	urls, err := Load(dir, "news-de")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/", "https://b.example/"}, urls)
}

func TestLoadRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"../secrets", "news de", "News", ""} {
		_, err := Load(dir, name)
		assert.Error(t, err, "name %q", name)
	}
}

func TestLoadEmptyCollection(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, "empty", `[]`)

	_, err := Load(dir, "empty")
	assert.ErrorContains(t, err, "empty")
}

func TestLoadMissingCollection(t *testing.T) {
	_, err := Load(t.TempDir(), "nope")
	assert.Error(t, err)
}

func TestSample(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, "top", `["https://a/", "https://b/", "https://c/", "https://d/"]`)

	urls, err := Sample(dir, config.SampleSpec{Collection: "top", Pages: 2})
	require.NoError(t, err)
	assert.Len(t, urls, 2)
	assert.NotEqual(t, urls[0], urls[1])
}

func TestSampleLargerThanCollection(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, "tiny", `["https://a/", "https://b/"]`)

	urls, err := Sample(dir, config.SampleSpec{Collection: "tiny", Pages: 10})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://a/", "https://b/"}, urls)
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, "top", `["https://a/", "https://b/", "https://c/"]`)

	explicit, err := Resolve(dir, config.JobConfig{URLs: []string{"https://x/"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/"}, explicit)

	sampled, err := Resolve(dir, config.JobConfig{Sample: &config.SampleSpec{Collection: "top", Pages: 1}})
	require.NoError(t, err)
	assert.Len(t, sampled, 1)

	none, err := Resolve(dir, config.JobConfig{})
	require.NoError(t, err)
	assert.Empty(t, none)
}
