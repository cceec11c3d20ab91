package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/termctl/termctl/internal/config"
	"github.com/termctl/termctl/internal/server"
	"github.com/termctl/termctl/internal/term"
)

type fileConfig struct {
	Node                string   `toml:"node"`
	ListenAddr          string   `toml:"listen_addr"`
	AdminAddr           string   `toml:"admin_addr"`
	CorsOrigins         []string `toml:"cors_origins"`
	MaxSessions         int      `toml:"max_sessions"`
	Heartbeat           string   `toml:"heartbeat"`
	HeartbeatIntervalMS int64    `toml:"heartbeat_interval_ms"`
	SessionProfile      string   `toml:"session_profile"`
	Prompt              string   `toml:"prompt"`
	Banner              string   `toml:"banner"`
	MaxLineLen          int      `toml:"max_line_len"`
	HistoryMax          int      `toml:"history_max"`
	LimitPolicy         string   `toml:"limit_policy"`
}

func loadServiceConfig(path string) (server.ServiceConfig, error) {
	cfg := server.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return server.ServiceConfig{}, fmt.Errorf("load termctl config: %w", err)
	}

	if meta.IsDefined("node") {
		if node := strings.TrimSpace(raw.Node); node != "" {
			cfg.Node = node
		}
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}

	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}

	if meta.IsDefined("max_sessions") {
		cfg.MaxSessions = raw.MaxSessions
	}

	if meta.IsDefined("heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Heartbeat))
		if err != nil {
			return server.ServiceConfig{}, fmt.Errorf("parse heartbeat: %w", err)
		}
		cfg.HeartbeatInterval = d
	}

	if meta.IsDefined("heartbeat_interval_ms") {
		cfg.HeartbeatInterval = time.Duration(raw.HeartbeatIntervalMS) * time.Millisecond
	}

	if meta.IsDefined("session_profile") {
		profile, err := config.LoadSessionProfile(strings.TrimSpace(raw.SessionProfile))
		if err != nil {
			return server.ServiceConfig{}, err
		}
		cfg.Session = profile
	}

	// Inline session keys override a loaded profile.
	if meta.IsDefined("prompt") {
		cfg.Session.Prompt = raw.Prompt
	}
	if meta.IsDefined("banner") {
		cfg.Session.Banner = raw.Banner
	}
	if meta.IsDefined("max_line_len") {
		cfg.Session.MaxLineLen = raw.MaxLineLen
	}
	if meta.IsDefined("history_max") {
		cfg.Session.HistoryMax = raw.HistoryMax
	}
	if meta.IsDefined("limit_policy") {
		cfg.Session.LimitPolicy = term.LimitPolicy(strings.TrimSpace(raw.LimitPolicy))
	}

	if err := cfg.Session.WithDefaults().Validate(); err != nil {
		return server.ServiceConfig{}, err
	}
	return cfg, nil
}
