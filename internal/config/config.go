package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pders01/profe/internal/pagination"
)

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Search   SearchConfig   `mapstructure:"search"`
	Database DatabaseConfig `mapstructure:"database"`
	UI       UIConfig       `mapstructure:"ui"`
	Media    MediaConfig    `mapstructure:"media"`
	Keys     KeyConfig      `mapstructure:"keys"`
	Log      LogConfig      `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Rate      float64       `mapstructure:"rate"`
	Burst     int           `mapstructure:"burst"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
	Token     string        `mapstructure:"token"`
	UserAgent string        `mapstructure:"user_agent"`
	// AllowPrivate permits localhost and private network API hosts.
	AllowPrivate bool `mapstructure:"allow_private"`
}

type SearchConfig struct {
	Debounce   time.Duration  `mapstructure:"debounce"`
	Timeout    time.Duration  `mapstructure:"timeout"`
	Schools    ResourceConfig `mapstructure:"schools"`
	Professors ResourceConfig `mapstructure:"professors"`
	Notes      ResourceConfig `mapstructure:"notes"`
	Reviews    ResourceConfig `mapstructure:"reviews"`
}

// ResourceConfig tunes one search view. EmptyQuery is "source" or "none".
type ResourceConfig struct {
	PageSize   int    `mapstructure:"page_size"`
	EmptyQuery string `mapstructure:"empty_query"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	TTL         time.Duration `mapstructure:"ttl"`
	SearchIndex bool          `mapstructure:"search_index"`
}

type UIConfig struct {
	Colors UIColors   `mapstructure:"colors"`
	Reader ReaderConf `mapstructure:"reader"`
	// ToastDuration is how long a failure message stays on screen.
	ToastDuration time.Duration `mapstructure:"toast_duration"`
}

type UIColors struct {
	Primary    string `mapstructure:"primary"`
	Secondary  string `mapstructure:"secondary"`
	Accent     string `mapstructure:"accent"`
	Background string `mapstructure:"background"`
	Surface    string `mapstructure:"surface"`
	Text       string `mapstructure:"text"`
	Muted      string `mapstructure:"muted"`
	Error      string `mapstructure:"error"`
	Success    string `mapstructure:"success"`
}

type ReaderConf struct {
	MaxPreviewLength int `mapstructure:"max_preview_length"`
	WordWrapMaxWidth int `mapstructure:"word_wrap_max_width"`
	WordWrapMinWidth int `mapstructure:"word_wrap_min_width"`
}

type MediaConfig struct {
	Darwin        MediaPlayers `mapstructure:"darwin"`
	Linux         MediaPlayers `mapstructure:"linux"`
	Windows       MediaPlayers `mapstructure:"windows"`
	DefaultOpener string       `mapstructure:"default_opener"`
}

type MediaPlayers struct {
	Image []string `mapstructure:"image"`
	PDF   []string `mapstructure:"pdf"`
}

type KeyConfig struct {
	Modifier string      `mapstructure:"modifier"`
	Bindings KeyBindings `mapstructure:"bindings"`
}

type KeyBindings struct {
	Quit       string `mapstructure:"quit"`
	Schools    string `mapstructure:"schools"`
	Professors string `mapstructure:"professors"`
	Notes      string `mapstructure:"notes"`
	Subject    string `mapstructure:"subject"`
	NextPage   string `mapstructure:"next_page"`
	PrevPage   string `mapstructure:"prev_page"`
	OpenMedia  string `mapstructure:"open_media"`
	Random     string `mapstructure:"random"`
	Back       string `mapstructure:"back"`
	Help       string `mapstructure:"help"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".profe")

	return &Config{
		API: APIConfig{
			BaseURL:      "http://localhost:8080/v1",
			Timeout:      10 * time.Second,
			Rate:         10,
			Burst:        5,
			CacheTTL:     30 * time.Second,
			CacheSize:    256,
			UserAgent:    "profe/1.0 (https://github.com/pders01/profe)",
			AllowPrivate: true,
		},
		Search: SearchConfig{
			Debounce:   500 * time.Millisecond,
			Timeout:    10 * time.Second,
			Schools:    ResourceConfig{PageSize: 8, EmptyQuery: "source"},
			Professors: ResourceConfig{PageSize: 8, EmptyQuery: "source"},
			Notes:      ResourceConfig{PageSize: 6, EmptyQuery: "source"},
			Reviews:    ResourceConfig{PageSize: 6, EmptyQuery: "source"},
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(dataDir, "session.db"),
			Timeout:     1 * time.Second,
			TTL:         24 * time.Hour,
			SearchIndex: true,
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary:    "#FF6B6B",
				Secondary:  "#4ECDC4",
				Accent:     "#95E1D3",
				Background: "#1A1A2E",
				Surface:    "#16213E",
				Text:       "#EAEAEA",
				Muted:      "#94A3B8",
				Error:      "#F87171",
				Success:    "#4ADE80",
			},
			Reader: ReaderConf{
				MaxPreviewLength: 150,
				WordWrapMaxWidth: 120,
				WordWrapMinWidth: 40,
			},
			ToastDuration: 4 * time.Second,
		},
		Media: MediaConfig{
			Darwin: MediaPlayers{
				Image: []string{"preview", "open"},
				PDF:   []string{"preview", "open"},
			},
			Linux: MediaPlayers{
				Image: []string{"sxiv", "feh", "eog", "xdg-open"},
				PDF:   []string{"zathura", "evince", "xdg-open"},
			},
			Windows: MediaPlayers{
				Image: []string{"rundll32"},
				PDF:   []string{"rundll32"},
			},
			DefaultOpener: getDefaultOpener(),
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
			Bindings: KeyBindings{
				Quit:       "q",
				Schools:    "s",
				Professors: "p",
				Notes:      "n",
				Subject:    "f",
				NextPage:   "right",
				PrevPage:   "left",
				OpenMedia:  "o",
				Random:     "r",
				Back:       "esc",
				Help:       "?",
			},
		},
		Log: LogConfig{
			Level: "off",
			File:  filepath.Join(dataDir, "profe.log"),
		},
	}
}

func getDefaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "linux":
		return "xdg-open"
	case "windows":
		return "rundll32"
	default:
		return "open"
	}
}

// DefaultPath is where Load looks when no explicit path is given.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "profe", "config.toml")
}

// LoadEnv reads KEY=value pairs from the given dotenv files (".env" when
// none) into the process environment. Existing variables win. Missing files
// are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

func Load(configPath string) (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}

	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("api", cfg.API)
	v.SetDefault("search", cfg.Search)
	v.SetDefault("database", cfg.Database)
	v.SetDefault("ui", cfg.UI)
	v.SetDefault("media", cfg.Media)
	v.SetDefault("keys", cfg.Keys)
	v.SetDefault("log", cfg.Log)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "profe")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PROFE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	fillDefaults(&config, cfg)
	applyEnv(&config)

	expandPaths(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// envOverrides maps environment variables onto the settings most often
// supplied from a .env file.
var envOverrides = map[string]func(*Config, string){
	"PROFE_API_BASE_URL":  func(c *Config, v string) { c.API.BaseURL = v },
	"PROFE_API_TOKEN":     func(c *Config, v string) { c.API.Token = v },
	"PROFE_LOG_LEVEL":     func(c *Config, v string) { c.Log.Level = v },
	"PROFE_DATABASE_PATH": func(c *Config, v string) { c.Database.Path = v },
}

func applyEnv(cfg *Config) {
	for key, set := range envOverrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			set(cfg, v)
		}
	}
}

// fillDefaults restores zero values left behind when a config file only sets
// part of a section.
func fillDefaults(cfg, def *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = def.API.BaseURL
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = def.API.Timeout
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = def.API.UserAgent
	}
	if cfg.Search.Debounce <= 0 {
		cfg.Search.Debounce = def.Search.Debounce
	}
	if cfg.Search.Timeout <= 0 {
		cfg.Search.Timeout = def.Search.Timeout
	}
	for _, pair := range []struct{ dst, src *ResourceConfig }{
		{&cfg.Search.Schools, &def.Search.Schools},
		{&cfg.Search.Professors, &def.Search.Professors},
		{&cfg.Search.Notes, &def.Search.Notes},
		{&cfg.Search.Reviews, &def.Search.Reviews},
	} {
		if pair.dst.PageSize == 0 {
			pair.dst.PageSize = pair.src.PageSize
		}
		if pair.dst.EmptyQuery == "" {
			pair.dst.EmptyQuery = pair.src.EmptyQuery
		}
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = def.Database.Path
	}
	if cfg.Database.Timeout <= 0 {
		cfg.Database.Timeout = def.Database.Timeout
	}
	if cfg.UI.ToastDuration <= 0 {
		cfg.UI.ToastDuration = def.UI.ToastDuration
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if c.API.Rate < 0 || c.API.Burst < 0 {
		return fmt.Errorf("api.rate and api.burst must not be negative")
	}
	for name, r := range map[string]ResourceConfig{
		"schools":    c.Search.Schools,
		"professors": c.Search.Professors,
		"notes":      c.Search.Notes,
		"reviews":    c.Search.Reviews,
	} {
		if err := pagination.ValidatePageSize(r.PageSize); err != nil {
			return fmt.Errorf("search.%s.page_size: %w", name, err)
		}
		switch strings.ToLower(r.EmptyQuery) {
		case "", "source", "all", "none", "nothing":
		default:
			return fmt.Errorf("search.%s.empty_query must be 'source' or 'none', got %q", name, r.EmptyQuery)
		}
	}
	return nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Log.File = expandPath(cfg.Log.File)
}

func resourceMap(r ResourceConfig) map[string]interface{} {
	return map[string]interface{}{
		"page_size":   r.PageSize,
		"empty_query": r.EmptyQuery,
	}
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Durations are written as strings for TOML readability. The token is
	// never persisted.
	apiCfg := map[string]interface{}{
		"base_url":      config.API.BaseURL,
		"timeout":       config.API.Timeout.String(),
		"rate":          config.API.Rate,
		"burst":         config.API.Burst,
		"cache_ttl":     config.API.CacheTTL.String(),
		"cache_size":    config.API.CacheSize,
		"user_agent":    config.API.UserAgent,
		"allow_private": config.API.AllowPrivate,
	}

	searchCfg := map[string]interface{}{
		"debounce":   config.Search.Debounce.String(),
		"timeout":    config.Search.Timeout.String(),
		"schools":    resourceMap(config.Search.Schools),
		"professors": resourceMap(config.Search.Professors),
		"notes":      resourceMap(config.Search.Notes),
		"reviews":    resourceMap(config.Search.Reviews),
	}

	dbCfg := map[string]interface{}{
		"path":         config.Database.Path,
		"timeout":      config.Database.Timeout.String(),
		"ttl":          config.Database.TTL.String(),
		"search_index": config.Database.SearchIndex,
	}

	uiCfg := map[string]interface{}{
		"colors":         config.UI.Colors,
		"reader":         config.UI.Reader,
		"toast_duration": config.UI.ToastDuration.String(),
	}

	v.Set("api", apiCfg)
	v.Set("search", searchCfg)
	v.Set("database", dbCfg)
	v.Set("ui", uiCfg)
	v.Set("media", config.Media)
	v.Set("keys", config.Keys)
	v.Set("log", config.Log)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
