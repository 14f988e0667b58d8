package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the configuration is sufficient for the given run
// mode. Modes: "serve", "enrich", "batch", "marketing".
func (c *Config) Validate(mode string) error {
	var problems []string

	needCRM := func() {
		if c.Zoho.ClientID == "" {
			problems = append(problems, "zoho.client_id is required")
		}
		if c.Zoho.ClientSecret == "" {
			problems = append(problems, "zoho.client_secret is required")
		}
		if c.Zoho.RefreshToken == "" {
			problems = append(problems, "zoho.refresh_token is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Cache.DatabaseURL == "" {
			problems = append(problems, "cache.database_url is required")
		}
	}

	switch mode {
	case "serve":
		needCRM()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "enrich":
		needCRM()
	case "batch":
		needCRM()
		if c.Batch.MaxConcurrentRecords < 1 || c.Batch.MaxConcurrentRecords > 50 {
			problems = append(problems, "batch.max_concurrent_records must be between 1 and 50")
		}
	case "marketing":
		if c.Embeddings.Key == "" {
			problems = append(problems, "embeddings.key is required")
		}
		if c.Marketing.CatalogPath == "" {
			problems = append(problems, "marketing.catalog_path is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Zoho.RefreshBufferSecs < 0 {
		problems = append(problems, "zoho.refresh_buffer_secs must be >= 0")
	}
	if c.Extract.MaxDocChars > 0 && c.Extract.MaxCombinedChars > 0 &&
		c.Extract.MaxDocChars > c.Extract.MaxCombinedChars {
		problems = append(problems, "extract.max_doc_chars must not exceed extract.max_combined_chars")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}
