package api

import (
	"context"
	"time"
)

// InstanceState represents the observed lifecycle state of a bot instance.
// It is always derived from the live registry, never from persisted fields.
type InstanceState string

const (
	StateStopped  InstanceState = "stopped"
	StateStarting InstanceState = "starting"
	StateRunning  InstanceState = "running"
	StateStopping InstanceState = "stopping"
	StateError    InstanceState = "error"
)

// InstanceStatus is the observed view of one bot instance returned by all
// management operations.
type InstanceStatus struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Template      string        `json:"template"`
	Credential    string        `json:"credential"`
	Personality   string        `json:"personality,omitempty"`
	AutoStart     bool          `json:"auto_start"`
	State         InstanceState `json:"state"`
	LastError     string        `json:"last_error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	LastHeartbeat *time.Time    `json:"last_heartbeat,omitempty"`
}

// TransitionEvent is pushed on the status feed for every lifecycle
// transition. Delivery is at-most-once with no replay; consumers reconcile
// against ListInstances periodically.
type TransitionEvent struct {
	InstanceID string        `json:"instance_id"`
	OldState   InstanceState `json:"old_state"`
	NewState   InstanceState `json:"new_state"`
	Reason     string        `json:"reason,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// CreateInstanceRequest describes a new instance config. ID is assigned by
// the orchestrator when empty.
type CreateInstanceRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Template    string `json:"template"`
	Credential  string `json:"credential"`
	Personality string `json:"personality,omitempty"`
	AutoStart   bool   `json:"auto_start"`
}

// UpdateInstanceRequest carries a partial update of an instance config.
// Nil fields are left unchanged. Changes to Credential, Template, or
// Personality affect the isolation or identity boundary and force a restart
// of a live instance; the remaining fields apply in place.
type UpdateInstanceRequest struct {
	Name        *string `json:"name,omitempty"`
	Template    *string `json:"template,omitempty"`
	Credential  *string `json:"credential,omitempty"`
	Personality *string `json:"personality,omitempty"`
	AutoStart   *bool   `json:"auto_start,omitempty"`
}

// SystemStats summarizes the orchestrator for the stats endpoint.
type SystemStats struct {
	Uptime        time.Duration         `json:"uptime"`
	InstanceCount int                   `json:"instance_count"`
	StateCounts   map[InstanceState]int `json:"state_counts"`
}

// InstanceManagerHandler provides lifecycle management for bot instances.
// All mutating operations are awaited to completion: DeleteInstance and
// RestartInstance internally await the stop of any live worker, so callers
// cannot leave a ghost worker behind.
type InstanceManagerHandler interface {
	CreateInstance(ctx context.Context, req CreateInstanceRequest) (*InstanceStatus, error)
	UpdateInstance(ctx context.Context, id string, req UpdateInstanceRequest) (*InstanceStatus, error)
	StartInstance(ctx context.Context, id string) (*InstanceStatus, error)
	StopInstance(ctx context.Context, id string) (*InstanceStatus, error)
	RestartInstance(ctx context.Context, id string) (*InstanceStatus, error)
	DeleteInstance(ctx context.Context, id string) error

	GetInstance(id string) (*InstanceStatus, error)
	ListInstances() []InstanceStatus
	Stats() SystemStats

	// SubscribeTransitions returns a channel receiving one event per
	// lifecycle transition.
	SubscribeTransitions() <-chan TransitionEvent
}

// TemplateInfo describes one named configuration template.
type TemplateInfo struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Personality  string            `json:"personality,omitempty"`
	LoadEmbedder bool              `json:"load_embedder"`
	Settings     map[string]string `json:"settings,omitempty"`
}

// TemplateManagerHandler manages the template table. Editing a template does
// not retroactively alter instances already created from it.
type TemplateManagerHandler interface {
	CreateTemplate(tmpl TemplateInfo) (*TemplateInfo, error)
	UpdateTemplate(id string, tmpl TemplateInfo) (*TemplateInfo, error)
	DeleteTemplate(id string) error
	GetTemplate(id string) (*TemplateInfo, error)
	ListTemplates() []TemplateInfo
}

// CredentialInfo is the redacted view of a stored credential. The secret
// value never leaves the vault through this type.
type CredentialInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Display string    `json:"display"`
	Active  bool      `json:"active"`
	AddedAt time.Time `json:"added_at"`
}

// CredentialManagerHandler manages the credential table.
type CredentialManagerHandler interface {
	AddCredential(name, token string) (*CredentialInfo, error)
	DeactivateCredential(id string) error
	ListCredentials() []CredentialInfo
}
