// Package registry loads structured YAML symbol metadata into a typed model
// of modules, groups, functions, types and constants.
//
// The registry is deliberately independent of page content: "see also" lists
// and prose descriptions keep their raw cross-reference tokens, which are
// resolved later once both the registry and the full page set exist.
package registry

import "strings"

// Kind tags the variant of a documented symbol.
type Kind string

const (
	KindModule   Kind = "module"
	KindFunction Kind = "function"
	KindType     Kind = "type"
	KindConstant Kind = "constant"
)

// Param describes one parameter of a callable symbol.
type Param struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
}

// Symbol is a documented language entity. The ID is derived from the declared
// module path and name, so it is stable across runs for identical input.
type Symbol struct {
	ID           string
	Name         string
	Title        string
	Kind         Kind
	Docs         string // raw description; may contain crossref tokens
	DocsResolved string // Docs with crossref tokens rewritten as resolved links
	Module       string // owning module id
	Params       []Param
	Returns      string
	Deprecated   bool
	See          []string // raw crossref tokens from metadata
}

// Group is a named ordered collection of symbols used for navigation grouping.
type Group struct {
	Name      string
	Title     string
	SymbolIDs []string
}

// Module is a namespace of symbols, itself addressable like a symbol.
type Module struct {
	ID           string
	Title        string
	Docs         string
	DocsResolved string
	File         string // metadata file that declared the module
	Groups       []Group
	SymbolIDs    []string // declaration order; includes grouped symbols
}

// Registry holds every loaded module and symbol, indexed by id.
type Registry struct {
	modules     map[string]*Module
	symbols     map[string]*Symbol
	moduleOrder []string
}

// Symbol returns the symbol with the given exact id.
func (r *Registry) Symbol(id string) (*Symbol, bool) {
	s, ok := r.symbols[id]
	return s, ok
}

// Module returns the module with the given exact id.
func (r *Registry) Module(id string) (*Module, bool) {
	m, ok := r.modules[id]
	return m, ok
}

// Modules returns all modules sorted by id.
func (r *Registry) Modules() []*Module {
	out := make([]*Module, 0, len(r.moduleOrder))
	for _, id := range r.moduleOrder {
		out = append(out, r.modules[id])
	}
	return out
}

// Symbols returns the symbols of a module in declaration order.
func (r *Registry) Symbols(moduleID string) []*Symbol {
	m, ok := r.modules[moduleID]
	if !ok {
		return nil
	}
	out := make([]*Symbol, 0, len(m.SymbolIDs))
	for _, id := range m.SymbolIDs {
		out = append(out, r.symbols[id])
	}
	return out
}

// Len returns the number of symbols in the registry (modules excluded).
func (r *Registry) Len() int {
	return len(r.symbols)
}

// MatchShort returns the ids of all symbols whose short name equals name,
// sorted. Multiple candidates mean the reference is ambiguous; callers must
// not silently pick one.
func (r *Registry) MatchShort(name string) []string {
	var out []string
	for _, moduleID := range r.moduleOrder {
		for _, id := range r.modules[moduleID].SymbolIDs {
			if r.symbols[id].Name == name {
				out = append(out, id)
			}
		}
	}
	return out
}

// RouteFor returns the navigation route for a symbol or module id.
// Modules map to /reference/<path>/, symbols to /reference/<path>/<name>/.
func RouteFor(id string) string {
	return "/reference/" + strings.ReplaceAll(id, ".", "/") + "/"
}
