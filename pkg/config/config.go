package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"` // 0.7 when absent; 0 is honoured
}

type WikiConfig struct {
	Lang       string        `yaml:"lang"`
	APIURL     string        `yaml:"api_url"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type PipelineConfig struct {
	Workers int  `yaml:"workers"`
	ShowRaw bool `yaml:"show_raw"`
}

type StoreConfig struct {
	URL          string `yaml:"url"`
	TableName    string `yaml:"table_name"`
	VectorDim    int    `yaml:"vector_dim"`
	EmbedModel   string `yaml:"embed_model"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"` // 200 when absent; 0 disables overlap
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Wiki     WikiConfig     `yaml:"wiki"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/wikillm/config.yaml"),
			"/etc/wikillm/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := newConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	applyDefaults(config)
	mergeWithEnv(config)

	return config, nil
}

// newConfig presets the fields for which zero is a meaningful setting, so that
// only keys missing from the file fall back to the default.
func newConfig() *Config {
	return &Config{
		LLM:   LLMConfig{Temperature: 0.7},
		Store: StoreConfig{ChunkOverlap: 200},
	}
}

func getDefaultConfig() *Config {
	config := newConfig()
	applyDefaults(config)
	mergeWithEnv(config)
	return config
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case "ollama":
			config.LLM.Model = "mistral"
		case "gemini":
			config.LLM.Model = "gemini-2.0-flash"
		default:
			config.LLM.Model = "gpt-4o-mini"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 512
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Wiki.Lang == "" {
		config.Wiki.Lang = "en"
	}
	if config.Wiki.APIURL == "" {
		config.Wiki.APIURL = "https://%s.wikipedia.org/w/api.php"
	}
	if config.Wiki.Timeout == 0 {
		config.Wiki.Timeout = 30 * time.Second
	}
	if config.Wiki.MaxRetries == 0 {
		config.Wiki.MaxRetries = 2
	}

	if config.Pipeline.Workers == 0 {
		config.Pipeline.Workers = 4
	}

	if config.Store.TableName == "" {
		config.Store.TableName = "evidence"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 768
	}
	if config.Store.EmbedModel == "" {
		config.Store.EmbedModel = "nomic-embed-text:latest"
	}
	if config.Store.ChunkSize == 0 {
		config.Store.ChunkSize = 1000
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) {
	switch config.LLM.Provider {
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			config.LLM.APIKey = key
		}
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			config.LLM.APIKey = key
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			config.LLM.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
}
