package vault

import (
	"menagerie/internal/api"
)

// Adapter implements api.CredentialManagerHandler on top of Manager.
type Adapter struct {
	manager *Manager
}

// NewAdapter creates the API adapter for the credential manager.
func NewAdapter(manager *Manager) *Adapter {
	return &Adapter{manager: manager}
}

// Register registers this adapter with the API layer.
func (a *Adapter) Register() {
	api.RegisterCredentialManager(a)
}

func (a *Adapter) AddCredential(name, token string) (*api.CredentialInfo, error) {
	id, err := a.manager.Add(name, token)
	if err != nil {
		return nil, err
	}
	return a.manager.Get(id)
}

func (a *Adapter) DeactivateCredential(id string) error {
	return a.manager.Deactivate(id)
}

func (a *Adapter) ListCredentials() []api.CredentialInfo {
	return a.manager.List()
}
