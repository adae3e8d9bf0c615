package llm

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash"

// Config holds generation parameters applied to every request.
type Config struct {
	Model           string
	Temperature     float32
	TopP            float32
	MaxOutputTokens int32
}

// DefaultConfig returns the generation parameters tuned for long-form
// course content: creative but bounded.
func DefaultConfig() *Config {
	return &Config{
		Model:           DefaultModel,
		Temperature:     0.7,
		TopP:            0.95,
		MaxOutputTokens: 8192,
	}
}
