package config

// Output format choices for the summarizer. Exactly one per deployment;
// the LLM client validates responses against the configured one only.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Sink strategy choices.
const (
	SinkPersist = "persist"
	SinkRender  = "render"
)

// Profile is the summarization profile loaded from a YAML file. It owns
// prompt configuration and the pipeline-wide variant choices that must
// stay constant within a deployment.
type Profile struct {
	Prompt   ProfilePrompt   `yaml:"prompt"`
	Pipeline ProfilePipeline `yaml:"pipeline"`
	Render   ProfileRender   `yaml:"render"`
}

type ProfilePrompt struct {
	System string `yaml:"system"`
	Format string `yaml:"format"`
}

type ProfilePipeline struct {
	Sink            string `yaml:"sink"`
	ExcerptMaxChars int    `yaml:"excerpt_max_chars"`
	WindowHours     int    `yaml:"window_hours"`
	MaxPosts        int    `yaml:"max_posts"`
}

type ProfileRender struct {
	OutputDir string `yaml:"output_dir"`
	Title     string `yaml:"title"`
}
