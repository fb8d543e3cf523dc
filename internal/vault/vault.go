// Package vault manages the credential table: opaque gateway tokens keyed by
// stable IDs. Tokens never leave this package except through Token, which is
// called only by the orchestrator when starting a worker. Every listing
// surface gets the redacted display form instead.
package vault

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"menagerie/internal/api"
	"menagerie/internal/config"
	"menagerie/pkg/logging"
)

// Manager provides credential operations backed by the config store.
type Manager struct {
	store *config.Store
}

// NewManager creates a credential manager over the given store.
func NewManager(store *config.Store) *Manager {
	return &Manager{store: store}
}

// Add stores a new credential and returns its generated ID. The name is a
// human label; the token is the secret handed to the gateway on connect.
func (m *Manager) Add(name, token string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", api.NewConfigError("name", "credential name must not be empty")
	}
	if strings.TrimSpace(token) == "" {
		return "", api.NewConfigError("token", "credential token must not be empty")
	}

	id := uuid.New().String()
	err := m.store.Mutate(func(doc *config.Document) error {
		for _, cred := range doc.Credentials {
			if cred.Name == name {
				return api.NewConfigError("name", fmt.Sprintf("credential name %q already in use", name))
			}
		}
		doc.Credentials = append(doc.Credentials, config.CredentialRecord{
			ID:      id,
			Name:    name,
			Token:   token,
			Active:  true,
			AddedAt: time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return "", err
	}

	logging.Info("Vault", "Added credential %s (%s)", id, name)
	return id, nil
}

// Deactivate marks a credential inactive. Instances referencing it keep
// running, but new starts against it are refused.
func (m *Manager) Deactivate(id string) error {
	err := m.store.Mutate(func(doc *config.Document) error {
		for i := range doc.Credentials {
			if doc.Credentials[i].ID == id {
				doc.Credentials[i].Active = false
				return nil
			}
		}
		return api.NewCredentialNotFoundError(id)
	})
	if err != nil {
		return err
	}

	logging.Info("Vault", "Deactivated credential %s", id)
	return nil
}

// Token returns the secret for an active credential. It is the only accessor
// that exposes the raw token.
func (m *Manager) Token(id string) (string, error) {
	doc := m.store.Snapshot()
	cred, ok := doc.FindCredential(id)
	if !ok {
		return "", api.NewCredentialNotFoundError(id)
	}
	if !cred.Active {
		return "", api.NewConfigError("credential", fmt.Sprintf("credential %s is inactive", id))
	}
	return cred.Token, nil
}

// Get returns the redacted info for one credential.
func (m *Manager) Get(id string) (*api.CredentialInfo, error) {
	doc := m.store.Snapshot()
	cred, ok := doc.FindCredential(id)
	if !ok {
		return nil, api.NewCredentialNotFoundError(id)
	}
	info := redact(cred)
	return &info, nil
}

// List returns redacted info for every credential, in table order.
func (m *Manager) List() []api.CredentialInfo {
	doc := m.store.Snapshot()
	infos := make([]api.CredentialInfo, 0, len(doc.Credentials))
	for _, cred := range doc.Credentials {
		infos = append(infos, redact(cred))
	}
	return infos
}

// redact builds the display form of a credential. Only the first and last
// four characters of the token survive; short tokens are fully masked.
func redact(cred config.CredentialRecord) api.CredentialInfo {
	return api.CredentialInfo{
		ID:      cred.ID,
		Name:    cred.Name,
		Display: DisplayToken(cred.Token),
		Active:  cred.Active,
		AddedAt: cred.AddedAt,
	}
}

// DisplayToken returns the redacted rendering of a raw token.
func DisplayToken(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
