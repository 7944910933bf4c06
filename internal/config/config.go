// Package config loads the YAML configuration file and validates it against
// an embedded CUE schema. The schema owns defaults and constraints, so every
// consumer sees a fully-populated, already-checked value.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the validated configuration. Field names follow the YAML keys.
type Config struct {
	World string `json:"world"`

	Database struct {
		Path string `json:"path"`
	} `json:"database"`

	Nexon struct {
		APIKey         string `json:"api_key"`
		BaseURL        string `json:"base_url"`
		TimeoutSeconds int    `json:"timeout_seconds"`
		MaxConns       int    `json:"max_conns"`
	} `json:"nexon"`

	Sync struct {
		Workers       int  `json:"workers"`
		QueueCap      int  `json:"queue_cap"`
		Batch         int  `json:"batch"`
		RefreshDays   int  `json:"refresh_days"`
		SkipExisting  bool `json:"skip_existing"`
		FailListLimit int  `json:"fail_list_limit"`
	} `json:"sync"`

	Blocklist struct {
		ServerName string `json:"server_name"`
		BaseURL    string `json:"base_url"`
		FirstStart string `json:"first_start"`
		DelayMS    int    `json:"delay_ms"`
	} `json:"blocklist"`
}

// Load reads path, applies the MAPLESYNC_API_KEY environment override, and
// returns the schema-validated configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates raw YAML bytes against the schema.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	if key := os.Getenv("MAPLESYNC_API_KEY"); key != "" {
		nexon, _ := raw["nexon"].(map[string]any)
		if nexon == nil {
			nexon = map[string]any{}
		}
		nexon["api_key"] = key
		raw["nexon"] = nexon
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config: compile schema: %w", err)
	}

	unified := schema.Unify(ctx.Encode(raw))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}
