package template

import (
	"menagerie/internal/api"
	"menagerie/internal/config"
)

// Adapter implements api.TemplateManagerHandler on top of Manager.
type Adapter struct {
	manager *Manager
}

// NewAdapter creates the API adapter for the template manager.
func NewAdapter(manager *Manager) *Adapter {
	return &Adapter{manager: manager}
}

// Register registers this adapter with the API layer.
func (a *Adapter) Register() {
	api.RegisterTemplateManager(a)
}

func (a *Adapter) CreateTemplate(tmpl api.TemplateInfo) (*api.TemplateInfo, error) {
	if err := a.manager.Create(fromInfo(tmpl)); err != nil {
		return nil, err
	}
	return a.GetTemplate(tmpl.ID)
}

func (a *Adapter) UpdateTemplate(id string, tmpl api.TemplateInfo) (*api.TemplateInfo, error) {
	tmpl.ID = id
	if err := a.manager.Update(fromInfo(tmpl)); err != nil {
		return nil, err
	}
	return a.GetTemplate(id)
}

func (a *Adapter) DeleteTemplate(id string) error {
	return a.manager.Delete(id)
}

func (a *Adapter) GetTemplate(id string) (*api.TemplateInfo, error) {
	rec, err := a.manager.Get(id)
	if err != nil {
		return nil, err
	}
	info := toInfo(rec)
	return &info, nil
}

func (a *Adapter) ListTemplates() []api.TemplateInfo {
	records := a.manager.List()
	infos := make([]api.TemplateInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, toInfo(rec))
	}
	return infos
}

func toInfo(rec config.TemplateRecord) api.TemplateInfo {
	return api.TemplateInfo{
		ID:           rec.ID,
		Name:         rec.Name,
		Description:  rec.Description,
		Personality:  rec.Personality,
		LoadEmbedder: rec.LoadEmbedder,
		Settings:     rec.Settings,
	}
}

func fromInfo(info api.TemplateInfo) config.TemplateRecord {
	return config.TemplateRecord{
		ID:           info.ID,
		Name:         info.Name,
		Description:  info.Description,
		Personality:  info.Personality,
		LoadEmbedder: info.LoadEmbedder,
		Settings:     info.Settings,
	}
}
