package registry

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/quilldocs/internal/diag"
	"git.home.luguber.info/inful/quilldocs/internal/logfields"
)

// moduleFile mirrors the YAML schema of one metadata source file.
type moduleFile struct {
	Module      string         `yaml:"module"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Groups      []groupEntry   `yaml:"groups"`
	Functions   []functionSpec `yaml:"functions"`
	Types       []typeSpec     `yaml:"types"`
	Constants   []constantSpec `yaml:"constants"`
}

type groupEntry struct {
	Name    string   `yaml:"name"`
	Title   string   `yaml:"title"`
	Symbols []string `yaml:"symbols"`
}

type functionSpec struct {
	Name        string   `yaml:"name"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Deprecated  bool     `yaml:"deprecated"`
	Params      []Param  `yaml:"params"`
	Returns     string   `yaml:"returns"`
	See         []string `yaml:"see"`
}

type typeSpec struct {
	Name        string   `yaml:"name"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Deprecated  bool     `yaml:"deprecated"`
	See         []string `yaml:"see"`
}

type constantSpec struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	See         []string `yaml:"see"`
}

// Load parses every *.yml / *.yaml file under dir into the registry.
//
// Shape problems in a single file (schema_error) skip that file and leave the
// rest of the load intact. Duplicate ids are recorded as duplicate_id
// diagnostics; they invalidate the whole run downstream. The returned error
// is reserved for environmental failures (unreadable directory).
func Load(dir string, report *diag.Report) (*Registry, error) {
	reg := &Registry{
		modules: make(map[string]*Module),
		symbols: make(map[string]*Symbol),
	}
	if dir == "" {
		return reg, nil
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yml", ".yaml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk metadata dir %s: %w", dir, err)
	}
	// WalkDir is lexically ordered already; sort anyway so id assignment
	// never depends on filesystem iteration details.
	sort.Strings(paths)

	for _, path := range paths {
		loadFile(reg, path, report)
	}

	reg.moduleOrder = make([]string, 0, len(reg.modules))
	for id := range reg.modules {
		reg.moduleOrder = append(reg.moduleOrder, id)
	}
	sort.Strings(reg.moduleOrder)

	reg.checkParents(report)

	slog.Debug("Loaded symbol registry",
		"modules", len(reg.modules),
		"symbols", len(reg.symbols))
	return reg, nil
}

func loadFile(reg *Registry, path string, report *diag.Report) {
	raw, err := os.ReadFile(path)
	if err != nil {
		report.Addf(diag.KindSchemaError, diag.Location{File: path}, fmt.Sprintf("read metadata file: %v", err))
		return
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var mf moduleFile
	if err := dec.Decode(&mf); err != nil {
		report.Addf(diag.KindSchemaError, diag.Location{File: path}, fmt.Sprintf("decode metadata: %v", err))
		return
	}

	if mf.Module == "" {
		report.Addf(diag.KindSchemaError, diag.Location{File: path}, "missing required field: module")
		return
	}
	if !validModulePath(mf.Module) {
		report.Addf(diag.KindSchemaError, diag.Location{File: path}, fmt.Sprintf("invalid module path %q", mf.Module))
		return
	}

	mod := &Module{
		ID:    mf.Module,
		Title: mf.Title,
		Docs:  mf.Description,
		File:  path,
	}
	if mod.Title == "" {
		mod.Title = mf.Module
	}

	// Collect symbols in declaration order. Names are validated before ids
	// are assigned so a bad file never half-populates the registry.
	declared := make(map[string]Kind, len(mf.Functions)+len(mf.Types)+len(mf.Constants))
	var symbols []*Symbol

	for _, fn := range mf.Functions {
		if !validName(fn.Name) {
			report.Addf(diag.KindSchemaError, diag.Location{File: path}, fmt.Sprintf("invalid function name %q", fn.Name))
			return
		}
		if prev, ok := declared[fn.Name]; ok {
			report.Addf(diag.KindDuplicateID, diag.Location{File: path},
				fmt.Sprintf("symbol id %q assigned twice (%s and function)", mf.Module+"."+fn.Name, prev))
			return
		}
		declared[fn.Name] = KindFunction
		symbols = append(symbols, &Symbol{
			Name:       fn.Name,
			Title:      titleOr(fn.Title, fn.Name),
			Kind:       KindFunction,
			Docs:       fn.Description,
			Params:     fn.Params,
			Returns:    fn.Returns,
			Deprecated: fn.Deprecated,
			See:        fn.See,
		})
	}
	for _, ty := range mf.Types {
		if !validName(ty.Name) {
			report.Addf(diag.KindSchemaError, diag.Location{File: path}, fmt.Sprintf("invalid type name %q", ty.Name))
			return
		}
		if prev, ok := declared[ty.Name]; ok {
			report.Addf(diag.KindDuplicateID, diag.Location{File: path},
				fmt.Sprintf("symbol id %q assigned twice (%s and type)", mf.Module+"."+ty.Name, prev))
			return
		}
		declared[ty.Name] = KindType
		symbols = append(symbols, &Symbol{
			Name:       ty.Name,
			Title:      titleOr(ty.Title, ty.Name),
			Kind:       KindType,
			Docs:       ty.Description,
			Deprecated: ty.Deprecated,
			See:        ty.See,
		})
	}
	for _, c := range mf.Constants {
		if !validName(c.Name) {
			report.Addf(diag.KindSchemaError, diag.Location{File: path}, fmt.Sprintf("invalid constant name %q", c.Name))
			return
		}
		if prev, ok := declared[c.Name]; ok {
			report.Addf(diag.KindDuplicateID, diag.Location{File: path},
				fmt.Sprintf("symbol id %q assigned twice (%s and constant)", mf.Module+"."+c.Name, prev))
			return
		}
		declared[c.Name] = KindConstant
		symbols = append(symbols, &Symbol{
			Name:    c.Name,
			Title:   titleOr(c.Title, c.Name),
			Kind:    KindConstant,
			Docs:    c.Description,
			Returns: c.Type,
			See:     c.See,
		})
	}

	// Groups may only reference names declared in the same file.
	for _, g := range mf.Groups {
		if g.Name == "" || !validName(g.Name) {
			report.Addf(diag.KindSchemaError, diag.Location{File: path}, fmt.Sprintf("invalid group name %q", g.Name))
			return
		}
		for _, name := range g.Symbols {
			if _, ok := declared[name]; !ok {
				report.Addf(diag.KindSchemaError, diag.Location{File: path},
					fmt.Sprintf("group %q references undeclared symbol %q", g.Name, name))
				return
			}
		}
	}

	if _, ok := reg.modules[mod.ID]; ok {
		report.Addf(diag.KindDuplicateID, diag.Location{File: path},
			fmt.Sprintf("module %q is declared more than once", mod.ID))
		return
	}

	for _, s := range symbols {
		s.ID = mod.ID + "." + s.Name
		s.Module = mod.ID
		if _, ok := reg.symbols[s.ID]; ok {
			report.Addf(diag.KindDuplicateID, diag.Location{File: path},
				fmt.Sprintf("symbol id %q assigned twice", s.ID))
			return
		}
	}

	reg.modules[mod.ID] = mod
	for _, s := range symbols {
		reg.symbols[s.ID] = s
		mod.SymbolIDs = append(mod.SymbolIDs, s.ID)
	}
	for _, g := range mf.Groups {
		group := Group{Name: g.Name, Title: titleOr(g.Title, g.Name)}
		for _, name := range g.Symbols {
			group.SymbolIDs = append(group.SymbolIDs, mod.ID+"."+name)
		}
		mod.Groups = append(mod.Groups, group)
	}

	slog.Debug("Loaded module metadata", logfields.Module(mod.ID), "symbols", len(symbols))
}

// checkParents enforces that every dotted module has its parent module
// declared. Orphans are dropped along with their symbols so downstream
// phases never see a symbol whose parent is missing.
func (r *Registry) checkParents(report *diag.Report) {
	var keep []string
	for _, id := range r.moduleOrder {
		parent, ok := parentModule(id)
		if !ok || r.modules[parent] != nil {
			keep = append(keep, id)
			continue
		}
		report.Addf(diag.KindSchemaError, diag.Location{File: r.modules[id].File},
			fmt.Sprintf("module %q declared without parent module %q", id, parent))
		for _, sid := range r.modules[id].SymbolIDs {
			delete(r.symbols, sid)
		}
		delete(r.modules, id)
	}
	r.moduleOrder = keep
}

func parentModule(id string) (string, bool) {
	i := strings.LastIndex(id, ".")
	if i < 0 {
		return "", false
	}
	return id[:i], true
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}

func validModulePath(p string) bool {
	for _, seg := range strings.Split(p, ".") {
		if !validName(seg) {
			return false
		}
	}
	return true
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '-':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
