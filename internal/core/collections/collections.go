// Package collections resolves named URL lists and draws random samples
// from them.
package collections

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"regexp"

	"admeasure/internal/config"
	"admeasure/internal/utils/jsonio"
)

var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Load reads the named collection, a JSON array of URLs, from the
// collections directory.
func Load(dir, name string) ([]string, error) {
	if !nameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	var urls []string
	if err := jsonio.ReadFile(filepath.Join(dir, name+".json"), &urls); err != nil {
		return nil, fmt.Errorf("load collection %q: %w", name, err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("collection %q is empty", name)
	}
	return urls, nil
}

// Sample draws spec.Pages distinct URLs from the named collection, in random
// order. A sample larger than the collection returns the whole collection
// shuffled.
func Sample(dir string, spec config.SampleSpec) ([]string, error) {
	urls, err := Load(dir, spec.Collection)
	if err != nil {
		return nil, err
	}
	shuffled := make([]string, len(urls))
	copy(shuffled, urls)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if spec.Pages < len(shuffled) {
		shuffled = shuffled[:spec.Pages]
	}
	return shuffled, nil
}

// Resolve turns a job's URL source into a concrete list: explicit URLs pass
// through, a sample spec is drawn from its collection.
func Resolve(dir string, job config.JobConfig) ([]string, error) {
	if job.Sample != nil {
		return Sample(dir, *job.Sample)
	}
	return job.URLs, nil
}
