package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Source is a configured origin of ingestible data, bound to one module.
// A source is never hard-deleted while capture history references it;
// deactivation is the soft delete.
type Source struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Module    string            `json:"module"`
	Active    bool              `json:"active"`
	Config    map[string]string `json:"config,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Validate checks the fields an operator must supply before a source
// can be persisted.
func (s *Source) Validate() error {
	if s.Name == "" {
		return eris.New("source: name is required")
	}
	if s.URL == "" {
		return eris.New("source: url is required")
	}
	if s.Module == "" {
		return eris.New("source: module is required")
	}
	return nil
}

// ConfigValue returns a module-specific config option, or "" if unset.
func (s *Source) ConfigValue(key string) string {
	if s.Config == nil {
		return ""
	}
	return s.Config[key]
}
