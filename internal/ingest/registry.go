package ingest

import "github.com/rotisserie/eris"

// capability is the scraper/analyzer pair registered under one module name.
type capability struct {
	scrape  ScrapeFunc
	analyze AnalyzeFunc // nil when the module has no analyzer
}

// Registry maps module names to their capability pair. It is populated
// once at process start and read-only afterwards, so lookups need no
// synchronization during steady-state operation.
type Registry struct {
	modules map[string]capability
	order   []string // registration order for deterministic listing
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]capability),
	}
}

// Register adds a module under name. The scraper is required; the
// analyzer may be nil. Registering a name twice fails with
// ErrDuplicateModule and leaves the original registration intact.
func (r *Registry) Register(name string, scrape ScrapeFunc, analyze AnalyzeFunc) error {
	if name == "" {
		return eris.New("ingest: module name is required")
	}
	if scrape == nil {
		return eris.Errorf("ingest: module %q has no scraper", name)
	}
	if _, exists := r.modules[name]; exists {
		return eris.Wrapf(ErrDuplicateModule, "%q", name)
	}
	r.modules[name] = capability{scrape: scrape, analyze: analyze}
	r.order = append(r.order, name)
	return nil
}

// ResolveScraper returns the scraper registered under name.
func (r *Registry) ResolveScraper(name string) (ScrapeFunc, error) {
	cap, ok := r.modules[name]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownModule, "%q", name)
	}
	return cap.scrape, nil
}

// ResolveAnalyzer returns the analyzer registered under name. A module
// without an analyzer yields ErrNoAnalyzer so callers can branch
// differently from the unknown-module case (skip vs. abort).
func (r *Registry) ResolveAnalyzer(name string) (AnalyzeFunc, error) {
	cap, ok := r.modules[name]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownModule, "%q", name)
	}
	if cap.analyze == nil {
		return nil, eris.Wrapf(ErrNoAnalyzer, "%q", name)
	}
	return cap.analyze, nil
}

// Names returns all registered module names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
