package config

import (
	"time"
)

// Document is the single persisted configuration document. It holds the
// credential table, the template table, the per-instance config table, and
// global settings. It is the only thing the control process persists;
// observed runtime state is never written here.
type Document struct {
	Version     string             `yaml:"version"`
	Settings    Settings           `yaml:"settings"`
	Credentials []CredentialRecord `yaml:"credentials"`
	Templates   []TemplateRecord   `yaml:"templates"`
	Instances   []InstanceConfig   `yaml:"instances"`
}

// Settings holds global knobs for the control process.
type Settings struct {
	// DataDir is the root under which per-instance isolated storage is
	// derived.
	DataDir string `yaml:"dataDir,omitempty"`

	// ListenAddr is the bind address of the management API.
	ListenAddr string `yaml:"listenAddr,omitempty"`

	// StopTimeout bounds the graceful disconnect of a worker before its
	// task is forcibly cancelled.
	StopTimeout time.Duration `yaml:"stopTimeout,omitempty"`

	// HeartbeatInterval is how often a live worker refreshes its heartbeat.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval,omitempty"`

	// StartStagger is the pause between boot-time auto-starts, to stay
	// friendly with chat-platform rate limits.
	StartStagger time.Duration `yaml:"startStagger,omitempty"`
}

// CredentialRecord is one entry in the credential table. Token is opaque to
// everything except the gateway connect call.
type CredentialRecord struct {
	ID      string    `yaml:"id"`
	Name    string    `yaml:"name"`
	Token   string    `yaml:"token"`
	Active  bool      `yaml:"active"`
	AddedAt time.Time `yaml:"addedAt"`
}

// TemplateRecord is a named bundle of default instance config fields.
// Editing a template does not retroactively alter instances already created
// from it; defaults are resolved at start time from the instance's own
// fields first.
type TemplateRecord struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description,omitempty"`
	Personality  string            `yaml:"personality,omitempty"`
	LoadEmbedder bool              `yaml:"loadEmbedder"`
	Settings     map[string]string `yaml:"settings,omitempty"`
}

// InstanceConfig is the persisted configuration of one bot instance.
// AutoStart is the persisted operator intent (desired state); the observed
// lifecycle state lives only in the orchestrator's live registry.
type InstanceConfig struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Template    string    `yaml:"template"`
	Credential  string    `yaml:"credential"`
	Personality string    `yaml:"personality,omitempty"`
	AutoStart   bool      `yaml:"autoStart"`
	CreatedAt   time.Time `yaml:"createdAt"`
}

// IdentityEquals reports whether two configs agree on every field that
// affects the identity or isolation boundary of a running worker. A change
// in any of these forces a restart on reload; everything else applies in
// place.
func (c InstanceConfig) IdentityEquals(other InstanceConfig) bool {
	return c.ID == other.ID &&
		c.Template == other.Template &&
		c.Credential == other.Credential &&
		c.Personality == other.Personality
}
