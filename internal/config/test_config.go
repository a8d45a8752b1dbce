package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	def := defaultConfig()
	return &Config{
		API: APIConfig{
			BaseURL:      "http://127.0.0.1:0",
			Timeout:      2 * time.Second,
			Rate:         1000,
			Burst:        100,
			CacheTTL:     0,
			UserAgent:    "profe-test/1.0",
			AllowPrivate: true,
		},
		Search: SearchConfig{
			Debounce:   10 * time.Millisecond,
			Timeout:    time.Second,
			Schools:    def.Search.Schools,
			Professors: def.Search.Professors,
			Notes:      def.Search.Notes,
			Reviews:    def.Search.Reviews,
		},
		Database: DatabaseConfig{
			Path:        ":memory:", // Use a throwaway database for tests
			Timeout:     1 * time.Second,
			TTL:         time.Hour,
			SearchIndex: true,
		},
		UI:    def.UI,
		Media: def.Media,
		Keys:  def.Keys,
		Log:   LogConfig{Level: "off"},
	}
}
