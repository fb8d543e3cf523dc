// Package template manages the template table: named bundles of default
// instance settings. Templates are copy-on-create; editing one never touches
// instances already created from it.
package template

import (
	"fmt"
	"strings"

	"menagerie/internal/api"
	"menagerie/internal/config"
	"menagerie/pkg/logging"
)

// Manager provides template operations backed by the config store.
type Manager struct {
	store *config.Store
}

// NewManager creates a template manager over the given store.
func NewManager(store *config.Store) *Manager {
	return &Manager{store: store}
}

// Create adds a new template. The ID must be unique and URL-safe since it
// appears in API paths.
func (m *Manager) Create(tmpl config.TemplateRecord) error {
	if err := validate(tmpl); err != nil {
		return err
	}

	err := m.store.Mutate(func(doc *config.Document) error {
		if _, ok := doc.FindTemplate(tmpl.ID); ok {
			return api.NewConfigError("id", fmt.Sprintf("template %q already exists", tmpl.ID))
		}
		doc.Templates = append(doc.Templates, tmpl)
		return nil
	})
	if err != nil {
		return err
	}

	logging.Info("Template", "Created template %s", tmpl.ID)
	return nil
}

// Update replaces an existing template. Running instances are unaffected;
// the new defaults apply to instances created afterwards.
func (m *Manager) Update(tmpl config.TemplateRecord) error {
	if err := validate(tmpl); err != nil {
		return err
	}

	err := m.store.Mutate(func(doc *config.Document) error {
		for i := range doc.Templates {
			if doc.Templates[i].ID == tmpl.ID {
				doc.Templates[i] = tmpl
				return nil
			}
		}
		return api.NewTemplateNotFoundError(tmpl.ID)
	})
	if err != nil {
		return err
	}

	logging.Info("Template", "Updated template %s", tmpl.ID)
	return nil
}

// Delete removes a template. Refused while any instance still references it.
func (m *Manager) Delete(id string) error {
	err := m.store.Mutate(func(doc *config.Document) error {
		for _, inst := range doc.Instances {
			if inst.Template == id {
				return fmt.Errorf("template %s referenced by instance %s: %w",
					id, inst.ID, api.ErrTemplateInUse)
			}
		}
		for i := range doc.Templates {
			if doc.Templates[i].ID == id {
				doc.Templates = append(doc.Templates[:i], doc.Templates[i+1:]...)
				return nil
			}
		}
		return api.NewTemplateNotFoundError(id)
	})
	if err != nil {
		return err
	}

	logging.Info("Template", "Deleted template %s", id)
	return nil
}

// Get returns one template record.
func (m *Manager) Get(id string) (config.TemplateRecord, error) {
	doc := m.store.Snapshot()
	tmpl, ok := doc.FindTemplate(id)
	if !ok {
		return config.TemplateRecord{}, api.NewTemplateNotFoundError(id)
	}
	return tmpl, nil
}

// List returns all templates in table order.
func (m *Manager) List() []config.TemplateRecord {
	return m.store.Snapshot().Templates
}

func validate(tmpl config.TemplateRecord) error {
	id := strings.TrimSpace(tmpl.ID)
	if id == "" {
		return api.NewConfigError("id", "template id must not be empty")
	}
	if strings.ContainsAny(id, " /\\") {
		return api.NewConfigError("id", fmt.Sprintf("template id %q must not contain spaces or slashes", id))
	}
	if strings.TrimSpace(tmpl.Name) == "" {
		return api.NewConfigError("name", "template name must not be empty")
	}
	return nil
}
