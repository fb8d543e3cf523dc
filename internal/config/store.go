package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"menagerie/pkg/logging"
)

// Store owns the persisted configuration document. All mutations go through
// Mutate, which applies the change and saves atomically while holding the
// lock, so a config that fails validation is never partially persisted.
type Store struct {
	mu   sync.RWMutex
	path string
	doc  Document

	// lastSaved is the content hash of the document as last written by this
	// process. The watcher uses it to ignore our own writes.
	lastSaved [32]byte
}

// NewStore creates a store backed by the document at path. The file is not
// touched until Load is called.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the persisted document.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document from disk. If the file does not exist, the default
// document (with built-in templates) is created and saved.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		logging.Info("Config", "No document at %s, creating defaults", s.path)
		s.doc = DefaultDocument()
		return s.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config document %s: %w", s.path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config document %s: %w", s.path, err)
	}
	doc.Settings.ApplyDefaults()

	s.doc = doc
	s.lastSaved = sha256.Sum256(data)
	logging.Info("Config", "Loaded document from %s (%d credentials, %d templates, %d instances)",
		s.path, len(doc.Credentials), len(doc.Templates), len(doc.Instances))
	return nil
}

// Snapshot returns a deep copy of the current document. Callers may mutate
// the copy freely.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.clone()
}

// Settings returns a copy of the current global settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Settings
}

// Mutate applies fn to the document and persists the result. If fn returns
// an error nothing is saved and the in-memory document is unchanged.
func (s *Store) Mutate(fn func(*Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	if err := fn(&next); err != nil {
		return err
	}

	s.doc = next
	return s.saveLocked()
}

// ReloadIfChanged re-reads the document from disk. It returns false when the
// on-disk content matches what this process last wrote (our own save events
// arriving through the watcher) or is unchanged.
func (s *Store) ReloadIfChanged() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("failed to re-read config document %s: %w", s.path, err)
	}

	sum := sha256.Sum256(data)
	if sum == s.lastSaved {
		return false, nil
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("failed to parse config document %s: %w", s.path, err)
	}
	doc.Settings.ApplyDefaults()

	s.doc = doc
	s.lastSaved = sum
	logging.Info("Config", "Reloaded document from %s", s.path)
	return true, nil
}

// saveLocked marshals the document and writes it atomically (temp file +
// rename). Must be called with the write lock held.
func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(&s.doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".menagerie-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp config file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace config document %s: %w", s.path, err)
	}

	s.lastSaved = sha256.Sum256(data)
	logging.Debug("Config", "Saved document to %s", s.path)
	return nil
}

// clone returns a deep copy of the document.
func (d Document) clone() Document {
	out := d
	out.Credentials = append([]CredentialRecord(nil), d.Credentials...)
	out.Templates = make([]TemplateRecord, len(d.Templates))
	for i, t := range d.Templates {
		out.Templates[i] = t
		if t.Settings != nil {
			out.Templates[i].Settings = make(map[string]string, len(t.Settings))
			for k, v := range t.Settings {
				out.Templates[i].Settings[k] = v
			}
		}
	}
	out.Instances = append([]InstanceConfig(nil), d.Instances...)
	return out
}

// FindInstance returns the instance config with the given id.
func (d Document) FindInstance(id string) (InstanceConfig, bool) {
	for _, inst := range d.Instances {
		if inst.ID == id {
			return inst, true
		}
	}
	return InstanceConfig{}, false
}

// FindTemplate returns the template record with the given id.
func (d Document) FindTemplate(id string) (TemplateRecord, bool) {
	for _, tmpl := range d.Templates {
		if tmpl.ID == id {
			return tmpl, true
		}
	}
	return TemplateRecord{}, false
}

// FindCredential returns the credential record with the given id.
func (d Document) FindCredential(id string) (CredentialRecord, bool) {
	for _, cred := range d.Credentials {
		if cred.ID == id {
			return cred, true
		}
	}
	return CredentialRecord{}, false
}
