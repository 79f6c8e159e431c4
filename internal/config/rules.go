package config

// rules.go loads the optional transformation rules overlay.
//
// The rules file lets operators remap CSV columns or tune retry behavior
// without a redeploy. Function-valued rules (validators, transforms,
// business rules) stay in code; only data-shaped overrides live here.
//
// Example rules.yaml:
//
//	field_mapping:
//	  company: name
//	  email_address: email
//	retry:
//	  max_retries: 5
//	  base_delay: 500ms

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Rules holds data-level overrides merged over the built-in defaults.
type Rules struct {
	// FieldMapping maps CSV column names to canonical record keys.
	// Entries override the default mapping by key; defaults stay in place.
	FieldMapping map[string]string

	// Retry overrides, applied only when the field is set in the file.
	MaxRetries *int
	BaseDelay  *time.Duration
	MaxDelay   *time.Duration
}

// LoadRules reads a rules overlay from path. A missing path returns empty
// Rules rather than an error so a bare deployment runs on defaults.
func LoadRules(path string) (Rules, error) {
	rules := Rules{}
	if path == "" {
		return rules, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return rules, fmt.Errorf("read rules file %s: %w", path, err)
	}

	if v.IsSet("field_mapping") {
		rules.FieldMapping = v.GetStringMapString("field_mapping")
	}
	if v.IsSet("retry.max_retries") {
		n := v.GetInt("retry.max_retries")
		if n < 0 {
			return rules, fmt.Errorf("rules file %s: retry.max_retries must be non-negative", path)
		}
		rules.MaxRetries = &n
	}
	if v.IsSet("retry.base_delay") {
		d := v.GetDuration("retry.base_delay")
		if d <= 0 {
			return rules, fmt.Errorf("rules file %s: retry.base_delay must be positive", path)
		}
		rules.BaseDelay = &d
	}
	if v.IsSet("retry.max_delay") {
		d := v.GetDuration("retry.max_delay")
		if d <= 0 {
			return rules, fmt.Errorf("rules file %s: retry.max_delay must be positive", path)
		}
		rules.MaxDelay = &d
	}

	return rules, nil
}
