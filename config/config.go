package config

import (
	"fmt"
	"net/url"
	"time"
)

// ScoreTypes lists the placement score types in scrape order.
var ScoreTypes = []string{"say", "ea", "soz", "dil"}

// scoreTypeNames maps score types to their display names for logs.
var scoreTypeNames = map[string]string{
	"say": "sayısal",
	"ea":  "eşit ağırlık",
	"soz": "sözel",
	"dil": "dil",
}

// Config holds scraper configuration for one invocation.
type Config struct {
	ScoreType   string
	AllTypes    bool
	OutputFile  string // empty means the per-score-type default
	Headless    bool
	PageSize    int
	NavTimeout  time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	PageDelay   time.Duration
	RunDelay    time.Duration
	UserAgent   string
	Verbose     bool
	MetricsAddr string
}

// DefaultConfig returns conservative defaults for the portal.
func DefaultConfig() *Config {
	return &Config{
		ScoreType:  "say",
		PageSize:   100,
		NavTimeout: 20 * time.Second,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		PageDelay:  2 * time.Second,
		RunDelay:   10 * time.Second,
		UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if !c.AllTypes && !ValidScoreType(c.ScoreType) {
		return fmt.Errorf("unknown score type %q (valid: %v)", c.ScoreType, ScoreTypes)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.NavTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.RunDelay < 0 {
		return fmt.Errorf("run delay cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

// ValidScoreType reports whether s is one of the supported score types.
func ValidScoreType(s string) bool {
	for _, st := range ScoreTypes {
		if s == st {
			return true
		}
	}
	return false
}

// ScoreTypeName returns the display name for a score type.
func ScoreTypeName(scoreType string) string {
	if name, ok := scoreTypeNames[scoreType]; ok {
		return name
	}
	return scoreType
}

// BaseURL returns the results-table URL for a score type. The portal expects
// the accented form "söz" in the query parameter.
func BaseURL(scoreType string) string {
	p := scoreType
	if p == "soz" {
		p = "söz"
	}
	return "https://yokatlas.yok.gov.tr/tercih-sihirbazi-t4-tablo.php?p=" + url.QueryEscape(p)
}

// OutputPath resolves the output file for a score type, honoring an explicit
// override from the configuration.
func (c *Config) OutputPath(scoreType string) string {
	if c.OutputFile != "" {
		return c.OutputFile
	}
	return fmt.Sprintf("universities_data_%s.json", scoreType)
}
