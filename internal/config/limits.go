package config

import "fmt"

// RunLimits bounds a single execute() call. These are the
// process-wide defaults; an individual call may still tighten them via
// Options.
type RunLimits struct {
	TimeoutMS   int64 `yaml:"timeout_ms" json:"timeout_ms"`
	MemoryBytes int64 `yaml:"memory_bytes" json:"memory_bytes"`
}

// Validate checks that limits are sane before they reach the governor.
func (l RunLimits) Validate() error {
	if l.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be > 0")
	}
	if l.MemoryBytes <= 0 {
		return fmt.Errorf("memory_bytes must be > 0")
	}
	return nil
}
