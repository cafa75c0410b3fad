package config

// IngestionDefaults are the global scrape settings applied to every title
// unless a per-title override replaces a field.
type IngestionDefaults struct {
	MaxReviews      int    `yaml:"max_reviews"`
	RateLimitRPM    int    `yaml:"rate_limit_rpm"`
	Language        string `yaml:"language"`
	EarlyAccess     string `yaml:"early_access"`      // include | exclude | only
	ReceivedForFree string `yaml:"received_for_free"` // include | exclude | only
}

// DefaultIngestionDefaults returns the built-in scrape defaults.
func DefaultIngestionDefaults() IngestionDefaults {
	return IngestionDefaults{
		MaxReviews:      1000,
		RateLimitRPM:    60,
		Language:        "english",
		EarlyAccess:     "include",
		ReceivedForFree: "include",
	}
}

// AnalysisDefaults are the default batching and provider settings for a new
// analysis job when the start request omits them.
type AnalysisDefaults struct {
	Provider          string `yaml:"provider"`
	Model             string `yaml:"model"`
	ReasoningEffort   string `yaml:"reasoning_effort"`
	ReviewsPerBatch   int    `yaml:"reviews_per_batch"`
	BatchesPerRequest int    `yaml:"batches_per_request"`
}

// DefaultAnalysisDefaults returns the built-in analysis defaults.
func DefaultAnalysisDefaults() AnalysisDefaults {
	return AnalysisDefaults{
		Provider:          "openai",
		Model:             "gpt-5",
		ReviewsPerBatch:   5,
		BatchesPerRequest: 1,
	}
}
