package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var langCode = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "openai", "gemini":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: fmt.Sprintf("an API key is required for provider %s", c.LLM.Provider),
			})
		}
	case "ollama":
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate wiki config
	if !langCode.MatchString(c.Wiki.Lang) {
		errors = append(errors, ValidationError{
			Field:   "wiki.lang",
			Message: fmt.Sprintf("invalid language code: %q", c.Wiki.Lang),
		})
	}

	if strings.Count(c.Wiki.APIURL, "%s") != 1 {
		errors = append(errors, ValidationError{
			Field:   "wiki.api_url",
			Message: "api_url must contain exactly one %s for the language code",
		})
	}

	if c.Wiki.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "wiki.timeout",
			Message: "timeout must be positive",
		})
	}

	if c.Pipeline.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.workers",
			Message: "workers must be positive",
		})
	}

	// The store is optional; only check it when it is switched on.
	if c.Store.URL != "" {
		if _, err := url.Parse(c.Store.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "invalid database URL",
			})
		}

		if c.Store.VectorDim < 1 {
			errors = append(errors, ValidationError{
				Field:   "store.vector_dim",
				Message: "vector_dim must be positive",
			})
		}

		if c.Store.ChunkSize < 1 {
			errors = append(errors, ValidationError{
				Field:   "store.chunk_size",
				Message: "chunk_size must be positive",
			})
		}

		if c.Store.ChunkOverlap < 0 || c.Store.ChunkOverlap >= c.Store.ChunkSize {
			errors = append(errors, ValidationError{
				Field:   "store.chunk_overlap",
				Message: "chunk_overlap must be non-negative and less than chunk_size",
			})
		}
	}

	if c.Server.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Message: "addr is required",
		})
	}

	return errors
}
