package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Forum configuration
	ForumBaseUrl  string
	PageDelay     int
	MaxTopicPages int

	// Inference server configuration
	OllamaBaseUrl string
	Model         string
	LLMTimeout    int

	// Application configuration
	ProfilePath    string
	Port           string
	BaseUrl        string
	DigestInterval int
	APIAccessKey   string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
