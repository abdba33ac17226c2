package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config carries the per-process settings that are not part of a plan.
type Config struct {
	AppEnv         string
	DataDir        string
	ProfileDir     string
	CollectionsDir string

	SupabaseURL        string
	SupabaseServiceKey string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func Load() Config {
	return Config{
		AppEnv:         getenv("APP_ENV", "development"),
		DataDir:        getenv("DATA_DIR", "./data"),
		ProfileDir:     getenv("PROFILE_DIR", "./profile"),
		CollectionsDir: getenv("COLLECTIONS_DIR", "./collections"),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
	}
}

// Device selects the browser engine and an optional device profile.
type Device struct {
	Type    string        `json:"type" yaml:"type"` // chromium, firefox, webkit
	Profile string        `json:"profile,omitempty" yaml:"profile,omitempty"`
	Options DeviceOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

type DeviceOptions struct {
	Headless *bool   `json:"headless,omitempty" yaml:"headless,omitempty"`
	Channel  string  `json:"channel,omitempty" yaml:"channel,omitempty"`
	SlowMo   float64 `json:"slow_mo,omitempty" yaml:"slow_mo,omitempty"` // milliseconds per action
}

// StoreConfig names the remote bucket a finished run is uploaded to.
// A nil StoreConfig disables the upload step, as does the literal false some
// plans carry in place of the object.
type StoreConfig struct {
	Bucket   string `json:"bucket" yaml:"bucket"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Enabled reports whether an upload target is actually configured.
func (s *StoreConfig) Enabled() bool {
	return s != nil && s.Bucket != ""
}

func (s *StoreConfig) UnmarshalJSON(data []byte) error {
	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		if flag {
			return fmt.Errorf("store: true needs a bucket config")
		}
		*s = StoreConfig{}
		return nil
	}
	type plain StoreConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = StoreConfig(p)
	return nil
}

func (s *StoreConfig) UnmarshalYAML(value *yaml.Node) error {
	var flag bool
	if err := value.Decode(&flag); err == nil {
		if flag {
			return fmt.Errorf("store: true needs a bucket config")
		}
		*s = StoreConfig{}
		return nil
	}
	type plain StoreConfig
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = StoreConfig(p)
	return nil
}

// LogFlags toggles the artifacts captured during a measure visit.
type LogFlags struct {
	Screenshot        string `json:"screenshot,omitempty" yaml:"screenshot,omitempty"` // "full", "screen" or ""
	Contents          bool   `json:"contents,omitempty" yaml:"contents,omitempty"`
	Cookies           bool   `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	AccessibilityTree bool   `json:"accessibility_tree,omitempty" yaml:"accessibility_tree,omitempty"`
	Har               bool   `json:"har,omitempty" yaml:"har,omitempty"`
	Video             bool   `json:"video,omitempty" yaml:"video,omitempty"`
	Console           bool   `json:"console,omitempty" yaml:"console,omitempty"`
}

// SampleSpec draws a random sample from a named URL collection.
type SampleSpec struct {
	Collection string `json:"collection" yaml:"collection"`
	Pages      int    `json:"pages" yaml:"pages"`
}

// JobConfig is one pass over a URL source with a named interaction strategy.
// Either URLs or Sample is set, never both.
type JobConfig struct {
	URLs     []string    `json:"-" yaml:"-"`
	Sample   *SampleSpec `json:"-" yaml:"-"`
	Strategy string      `json:"strategy" yaml:"strategy"`
}

// jobConfigWire tolerates the two shapes of "urls": a string list or a
// {collection, pages} object.
type jobConfigWire struct {
	URLs     any    `json:"urls" yaml:"urls"`
	Strategy string `json:"strategy" yaml:"strategy"`
}

func (j *JobConfig) UnmarshalJSON(data []byte) error {
	var w jobConfigWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return j.fromWire(w)
}

func (j *JobConfig) UnmarshalYAML(value *yaml.Node) error {
	var w jobConfigWire
	if err := value.Decode(&w); err != nil {
		return err
	}
	return j.fromWire(w)
}

func (j *JobConfig) fromWire(w jobConfigWire) error {
	j.Strategy = w.Strategy
	switch u := w.URLs.(type) {
	case nil:
	case []any:
		for _, e := range u {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("urls: expected string, got %T", e)
			}
			j.URLs = append(j.URLs, s)
		}
	case map[string]any:
		spec := SampleSpec{}
		if c, ok := u["collection"].(string); ok {
			spec.Collection = c
		}
		switch p := u["pages"].(type) {
		case float64:
			spec.Pages = int(p)
		case int:
			spec.Pages = p
		}
		if spec.Collection == "" || spec.Pages <= 0 {
			return fmt.Errorf("urls: sample spec needs collection and pages")
		}
		j.Sample = &spec
	default:
		return fmt.Errorf("urls: unexpected type %T", u)
	}
	return nil
}

// MeasurementPlan is the immutable configuration of one run.
type MeasurementPlan struct {
	Version int    `json:"version" yaml:"version"`
	ID      string `json:"id" yaml:"id"`

	Region   string  `json:"region,omitempty" yaml:"region,omitempty"`
	Device   *Device `json:"device,omitempty" yaml:"device,omitempty"`
	Locale   string  `json:"locale,omitempty" yaml:"locale,omitempty"`
	Timezone string  `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	GPC      bool    `json:"gpc,omitempty" yaml:"gpc,omitempty"`

	Concurrency  int  `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	ClearProfile bool `json:"clear_profile,omitempty" yaml:"clear_profile,omitempty"`

	Log   LogFlags     `json:"log" yaml:"log"`
	Store *StoreConfig `json:"store,omitempty" yaml:"store,omitempty"`

	Prime   JobConfig `json:"prime" yaml:"prime"`
	Measure JobConfig `json:"measure" yaml:"measure"`
}

// Job returns the prime or measure JobConfig by part name.
func (p *MeasurementPlan) Job(part string) JobConfig {
	if part == "prime" {
		return p.Prime
	}
	return p.Measure
}

const supportedPlanVersion = 3

// LoadPlan reads a measurement plan from a JSON or YAML file.
func LoadPlan(path string) (*MeasurementPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan MeasurementPlan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &plan)
	default:
		err = json.Unmarshal(data, &plan)
	}
	if err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if plan.Version != supportedPlanVersion {
		return nil, fmt.Errorf("unsupported plan version %d", plan.Version)
	}
	if plan.ID == "" {
		return nil, fmt.Errorf("plan has no id")
	}
	return &plan, nil
}

// Region groups with shared locale and timezone defaults.
var ukieRegions = map[string]bool{"lon1": true, "eu-west-1": true}

func LocaleForRegion(region string) string {
	if ukieRegions[region] {
		return "en-GB;q=0.9,en;q=0.8"
	}
	return "de-DE,de;q=0.9"
}

func TimezoneForRegion(region string) string {
	if ukieRegions[region] {
		return "Europe/London"
	}
	return "Europe/Berlin"
}
