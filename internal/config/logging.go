package config

// LoggingConfig configures the executor's zap logger.
type LoggingConfig struct {
	Verbose    bool            `yaml:"verbose" json:"verbose,omitempty"`
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"`
}

// IsCategoryEnabled reports whether a named logging category should emit.
// Categories default to enabled when unspecified; an explicit false entry
// silences that one area (e.g. verbose tool-mediator HTTP tracing) without
// affecting the rest.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}
