package config

import (
	"time"
)

const (
	defaultListenAddr        = "localhost:8080"
	defaultDataDir           = "./data"
	defaultStopTimeout       = 10 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
	defaultStartStagger      = 2 * time.Second
)

// DefaultDocument returns the document written on first run: empty
// credential and instance tables, built-in templates, default settings.
func DefaultDocument() Document {
	return Document{
		Version: "1",
		Settings: Settings{
			DataDir:           defaultDataDir,
			ListenAddr:        defaultListenAddr,
			StopTimeout:       defaultStopTimeout,
			HeartbeatInterval: defaultHeartbeatInterval,
			StartStagger:      defaultStartStagger,
		},
		Templates: BuiltinTemplates(),
	}
}

// BuiltinTemplates returns the templates seeded into a fresh document.
func BuiltinTemplates() []TemplateRecord {
	return []TemplateRecord{
		{
			ID:           "pure-grug",
			Name:         "Pure Grug",
			Description:  "Caveman personality only, no evolution",
			Personality:  "grug",
			LoadEmbedder: true,
		},
		{
			ID:           "pure-big-rob",
			Name:         "Pure Big Rob",
			Description:  "norf FC lad personality only, no evolution",
			Personality:  "big_rob",
			LoadEmbedder: true,
		},
		{
			ID:           "evolution",
			Name:         "Evolution Bot",
			Description:  "Adaptive personality that evolves per server",
			Personality:  "",
			LoadEmbedder: true,
		},
		{
			ID:           "lightweight-grug",
			Name:         "Lightweight Grug",
			Description:  "Grug personality without semantic search",
			Personality:  "grug",
			LoadEmbedder: false,
		},
	}
}

// ApplyDefaults fills zero-valued settings with their defaults. Called after
// every load so a hand-edited document with missing fields stays usable.
func (s *Settings) ApplyDefaults() {
	if s.DataDir == "" {
		s.DataDir = defaultDataDir
	}
	if s.ListenAddr == "" {
		s.ListenAddr = defaultListenAddr
	}
	if s.StopTimeout == 0 {
		s.StopTimeout = defaultStopTimeout
	}
	if s.HeartbeatInterval == 0 {
		s.HeartbeatInterval = defaultHeartbeatInterval
	}
	if s.StartStagger == 0 {
		s.StartStagger = defaultStartStagger
	}
}
