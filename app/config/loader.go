package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultSystemPrompt = "You are summarizing ONE forum thread excerpt.\n" +
	"Return a concise summary in plain text:\n" +
	"- First line: a brief headline.\n" +
	"- Subsequent lines: '- ' bullet points with key facts.\n" +
	"Do NOT include post IDs, timestamps, author names, or URLs."

// Loader handles loading and validation of the summarization profile
type Loader struct {
	path string
}

// NewLoader creates a new profile loader
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the profile YAML, applies defaults and validates it.
// A missing file is not an error: the defaults describe a usable
// plain-text, persisting deployment.
func (l *Loader) Load() (*Profile, error) {
	var profile Profile

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.setDefaults(&profile)
			return &profile, nil
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile YAML: %w", err)
	}

	l.setDefaults(&profile)

	if err := l.validate(&profile); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", l.path, err)
	}

	return &profile, nil
}

// setDefaults applies default values to the profile
func (l *Loader) setDefaults(profile *Profile) {
	if profile.Prompt.System == "" {
		profile.Prompt.System = defaultSystemPrompt
	}
	if profile.Prompt.Format == "" {
		profile.Prompt.Format = FormatText
	}
	if profile.Pipeline.Sink == "" {
		profile.Pipeline.Sink = SinkPersist
	}
	if profile.Pipeline.ExcerptMaxChars == 0 {
		profile.Pipeline.ExcerptMaxChars = 1800
	}
	if profile.Pipeline.MaxPosts == 0 {
		profile.Pipeline.MaxPosts = 200
	}
	if profile.Render.OutputDir == "" {
		profile.Render.OutputDir = "./public"
	}
	if profile.Render.Title == "" {
		profile.Render.Title = "Forum Digest"
	}
}

// validate validates the profile
func (l *Loader) validate(profile *Profile) error {
	if profile.Prompt.Format != FormatJSON && profile.Prompt.Format != FormatText {
		return fmt.Errorf("prompt format must be %q or %q, got %q", FormatJSON, FormatText, profile.Prompt.Format)
	}
	if profile.Pipeline.Sink != SinkPersist && profile.Pipeline.Sink != SinkRender {
		return fmt.Errorf("sink must be %q or %q, got %q", SinkPersist, SinkRender, profile.Pipeline.Sink)
	}
	if profile.Pipeline.ExcerptMaxChars < 0 {
		return fmt.Errorf("excerpt_max_chars must be non-negative")
	}
	if profile.Pipeline.WindowHours < 0 {
		return fmt.Errorf("window_hours must be non-negative")
	}
	if profile.Pipeline.MaxPosts < 0 {
		return fmt.Errorf("max_posts must be non-negative")
	}

	return nil
}
