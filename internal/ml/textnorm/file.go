package textnorm

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig builds a Config from an optional YAML stop-word file and a comma-separated
// custom list. A non-empty custom list replaces the file's custom entries.
func LoadConfig(path, customCSV string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read stop-word file: %w", err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse stop-word file: %w", err)
		}
		cfg.FrenchExtra = fileCfg.FrenchExtra
		cfg.EnglishExtra = fileCfg.EnglishExtra
		if fileCfg.Custom != nil {
			cfg.Custom = fileCfg.Custom
		}
	}
	if custom := splitCSV(customCSV); len(custom) > 0 {
		cfg.Custom = custom
	}
	return cfg, nil
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
