package nemochat

import (
	_ "embed"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

//go:embed config/defaults.yaml
var defaultSeedYAML []byte

// Seed is the initial state of a conversation: the log a Store starts from
// and returns to on Clear, and the default model parameters.
//
// The embedded defaults can be overridden with LoadSeedFromFile.
type Seed struct {
	Version        string          `yaml:"version"`      // Semantic version (e.g., "1.0.0")
	LastUpdated    string          `yaml:"last_updated"` // ISO 8601 date
	SystemPrompt   string          `yaml:"system_prompt"`
	WelcomeMessage string          `yaml:"welcome_message"`
	Settings       ModelParameters `yaml:"settings"`
}

var (
	defaultSeed     Seed
	defaultSeedErr  error
	defaultSeedOnce sync.Once
)

// DefaultSeed returns the embedded seed. It panics if the embedded YAML is
// invalid, which is a build defect rather than a runtime condition.
func DefaultSeed() Seed {
	defaultSeedOnce.Do(func() {
		defaultSeed, defaultSeedErr = ParseSeed(defaultSeedYAML)
	})
	if defaultSeedErr != nil {
		panic(errors.Wrap(defaultSeedErr, "embedded seed"))
	}
	return defaultSeed
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, errors.Wrap(err, "failed to parse seed YAML")
	}
	if err := seed.Validate(); err != nil {
		return Seed{}, err
	}
	return seed, nil
}

// LoadSeedFromFile loads a seed from a YAML file on disk.
// Fields missing from the file keep their embedded default values.
func LoadSeedFromFile(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, errors.Wrapf(err, "failed to read seed file %s", path)
	}

	seed := DefaultSeed()
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, errors.Wrapf(err, "failed to parse seed file %s", path)
	}
	if err := seed.Validate(); err != nil {
		return Seed{}, errors.Wrapf(err, "seed file %s", path)
	}
	return seed, nil
}

// Validate checks that the seed can produce a usable initial log.
func (s Seed) Validate() error {
	if strings.TrimSpace(s.SystemPrompt) == "" {
		return errors.New("seed: system_prompt is required")
	}
	if strings.TrimSpace(s.WelcomeMessage) == "" {
		return errors.New("seed: welcome_message is required")
	}
	return s.Settings.Validate()
}

// Messages returns the initial log: the system prompt followed by the welcome
// message from the assistant.
func (s Seed) Messages(now time.Time) []Message {
	return []Message{
		NewMessage(RoleSystem, s.SystemPrompt, now),
		NewMessage(RoleAssistant, s.WelcomeMessage, now),
	}
}
