package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/termctl/termctl/internal/term"
)

// SessionProfile is the on-disk shape of one line-discipline profile. A
// profile bundles the wire-visible knobs (prompt, banner) with the edit
// limits so operators can swap them as a unit.
type SessionProfile struct {
	Prompt      string `toml:"prompt"`
	Banner      string `toml:"banner"`
	MaxLineLen  int    `toml:"max_line_len"`
	HistoryMax  int    `toml:"history_max"`
	LimitPolicy string `toml:"limit_policy"`
}

// LoadSessionProfile reads one profile and converts it to a validated
// term.Config, with defaults applied to omitted fields.
func LoadSessionProfile(path string) (term.Config, error) {
	var profile SessionProfile
	if err := loadToml(path, &profile); err != nil {
		return term.Config{}, err
	}
	return profile.SessionConfig()
}

// SessionConfig converts the profile into a validated term.Config.
func (p SessionProfile) SessionConfig() (term.Config, error) {
	cfg := term.Config{
		Prompt:      p.Prompt,
		Banner:      p.Banner,
		MaxLineLen:  p.MaxLineLen,
		HistoryMax:  p.HistoryMax,
		LimitPolicy: term.LimitPolicy(strings.TrimSpace(p.LimitPolicy)),
	}.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return term.Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
