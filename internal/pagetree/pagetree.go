// Package pagetree assembles the final navigation tree: guide pages attached
// to their declared parents plus a synthesized reference section derived from
// the symbol registry.
//
// The tree is an arena of nodes linked by ids, with stable pre-order prev/next
// threading so front ends can paginate without walking the hierarchy.
package pagetree

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"git.home.luguber.info/inful/quilldocs/internal/content"
	"git.home.luguber.info/inful/quilldocs/internal/diag"
	"git.home.luguber.info/inful/quilldocs/internal/registry"
	"git.home.luguber.info/inful/quilldocs/internal/resolve"
)

// NodeID indexes a node in the tree's arena. None marks a missing link.
type NodeID int

const None NodeID = -1

// NodeKind tags what a node represents.
type NodeKind string

const (
	KindRoot      NodeKind = "root"
	KindGuide     NodeKind = "guide"
	KindReference NodeKind = "reference"
	KindModule    NodeKind = "module"
	KindGroup     NodeKind = "group"
	KindSymbol    NodeKind = "symbol"
)

// Node is one entry of the navigation tree. Guide nodes carry their parsed
// document; reference nodes carry the symbol or module id instead. Group
// nodes are navigation-only and have no route.
type Node struct {
	ID       NodeID   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Title    string   `json:"title"`
	Route    string   `json:"route,omitempty"`
	Weight   int      `json:"weight,omitempty"`
	Parent   NodeID   `json:"parent"`
	Prev     NodeID   `json:"prev"`
	Next     NodeID   `json:"next"`
	Children []NodeID `json:"children,omitempty"`

	Document *content.Document `json:"document,omitempty"`
	SymbolID string            `json:"symbol_id,omitempty"`
	See      []resolve.Link    `json:"see,omitempty"`
}

// Tree is the assembled navigation tree. Nodes[0] is always the root.
type Tree struct {
	Title string `json:"title"`
	Nodes []Node `json:"nodes"`
}

// Root returns the root node id.
func (t *Tree) Root() NodeID { return 0 }

// Node returns a pointer into the arena; valid until the next append.
func (t *Tree) Node(id NodeID) *Node { return &t.Nodes[id] }

// ByRoute returns the node with the given route, or nil.
func (t *Tree) ByRoute(route string) *Node {
	for i := range t.Nodes {
		if t.Nodes[i].Route == route {
			return &t.Nodes[i]
		}
	}
	return nil
}

// GuideRoute derives the canonical route of a guide source file from its
// directory (relative to the content root) and its slug. An "index" slug
// addresses the directory itself.
func GuideRoute(relFile string, meta content.FrontMatter) string {
	slug := meta.Slug
	if slug == "" {
		slug = content.Slugify(meta.Title)
	}

	dir := path.Dir(relFile)
	if dir == "." {
		dir = ""
	}

	base := strings.TrimSuffix(path.Base(relFile), path.Ext(relFile))
	if base == "index" || base == "_index" {
		if meta.Slug == "" {
			if dir == "" {
				return "/"
			}
			return "/" + dir + "/"
		}
	}

	if dir == "" {
		return "/" + slug + "/"
	}
	return "/" + dir + "/" + slug + "/"
}

// builder accumulates arena state during Build.
type builder struct {
	tree   *Tree
	routes map[string]NodeID
	report *diag.Report
}

// Build assembles the tree from parsed guide documents and the symbol
// registry. routes maps each document's source file to its route (the same
// map resolution used), and see carries resolved "see also" links per symbol.
//
// Duplicate routes are structural: the colliding page is dropped and a
// duplicate_route diagnostic recorded; callers decide whether the resulting
// tree may be emitted.
func Build(docs []*content.Document, routes map[string]string, reg *registry.Registry, see map[string][]resolve.Link, report *diag.Report) *Tree {
	b := &builder{
		tree:   &Tree{},
		routes: make(map[string]NodeID),
		report: report,
	}
	root := b.add(Node{Kind: KindRoot, Route: "/", Parent: None})

	b.buildGuides(root, docs, routes)
	b.buildReference(root, reg, see)
	b.thread()
	return b.tree
}

func (b *builder) add(n Node) NodeID {
	n.ID = NodeID(len(b.tree.Nodes))
	n.Prev, n.Next = None, None
	b.tree.Nodes = append(b.tree.Nodes, n)
	if n.Route != "" {
		b.routes[n.Route] = n.ID
	}
	return n.ID
}

func (b *builder) attach(parent, child NodeID) {
	b.tree.Nodes[child].Parent = parent
	b.tree.Nodes[parent].Children = append(b.tree.Nodes[parent].Children, child)
}

// claimRoute reserves a route, reporting a duplicate_route diagnostic when it
// is already taken. The first claimant wins.
func (b *builder) claimRoute(route, file string) bool {
	if prior, ok := b.routes[route]; ok {
		priorFile := b.tree.Nodes[prior].Route
		if d := b.tree.Nodes[prior].Document; d != nil {
			priorFile = d.File
		}
		b.report.Addf(diag.KindDuplicateRoute, diag.Location{File: file},
			fmt.Sprintf("route %q already produced by %s", route, priorFile))
		return false
	}
	return true
}

func (b *builder) buildGuides(root NodeID, docs []*content.Document, routes map[string]string) {
	// Stable input order: by route, file as tiebreak. Sibling order is decided
	// later by weight and title; this ordering only fixes which page wins a
	// route collision.
	ordered := make([]*content.Document, len(docs))
	copy(ordered, docs)
	sort.Slice(ordered, func(i, j int) bool {
		ri, rj := routes[ordered[i].File], routes[ordered[j].File]
		if ri != rj {
			return ri < rj
		}
		return ordered[i].File < ordered[j].File
	})

	created := make([]NodeID, 0, len(ordered))
	for _, doc := range ordered {
		route := routes[doc.File]
		if route == "" || route == "/" {
			// The content root page merges into the root node.
			if route == "/" {
				b.tree.Nodes[root].Document = doc
				b.tree.Nodes[root].Title = doc.Meta.Title
				continue
			}
			continue
		}
		if !b.claimRoute(route, doc.File) {
			continue
		}
		id := b.add(Node{
			Kind:     KindGuide,
			Title:    doc.Meta.Title,
			Route:    route,
			Weight:   doc.Meta.Weight,
			Parent:   None,
			Document: doc,
		})
		created = append(created, id)
	}

	// Attach after all routes exist so a page may name a later sibling's
	// route as its parent. Pages without a declared parent nest under the
	// nearest existing ancestor route, so directory layout alone builds a tree.
	for _, id := range created {
		node := b.tree.Nodes[id]
		parent := root
		if p := node.Document.Meta.Parent; p != "" {
			if pid, ok := b.routes[canonical(p)]; ok {
				parent = pid
			} else {
				b.report.Addf(diag.KindBrokenReference,
					diag.Location{File: node.Document.File},
					fmt.Sprintf("parent page %q does not exist", p))
			}
		} else {
			parent = b.nearestAncestor(node.Route, root)
		}
		b.attach(parent, id)
	}

	b.sortGuideChildren(root)
}

// nearestAncestor walks a route upward one segment at a time and returns the
// first node already claiming an ancestor route, falling back to the root.
func (b *builder) nearestAncestor(route string, root NodeID) NodeID {
	for r := parentRoute(route); r != "/"; r = parentRoute(r) {
		if id, ok := b.routes[r]; ok {
			return id
		}
	}
	return root
}

// parentRoute strips the last segment of a trailing-slash route:
// /a/b/ -> /a/ -> /.
func parentRoute(route string) string {
	trimmed := strings.TrimSuffix(route, "/")
	i := strings.LastIndex(trimmed, "/")
	if i <= 0 {
		return "/"
	}
	return trimmed[:i+1]
}

// sortGuideChildren orders guide siblings by weight, then title, then route.
// Reference nodes keep declaration order and are appended after guides, so
// only guide runs are sorted.
func (b *builder) sortGuideChildren(id NodeID) {
	children := b.tree.Nodes[id].Children
	sort.SliceStable(children, func(i, j int) bool {
		a, c := b.tree.Nodes[children[i]], b.tree.Nodes[children[j]]
		if a.Weight != c.Weight {
			return a.Weight < c.Weight
		}
		if a.Title != c.Title {
			return a.Title < c.Title
		}
		return a.Route < c.Route
	})
	for _, child := range children {
		if b.tree.Nodes[child].Kind == KindGuide {
			b.sortGuideChildren(child)
		}
	}
}

func (b *builder) buildReference(root NodeID, reg *registry.Registry, see map[string][]resolve.Link) {
	if reg == nil || len(reg.Modules()) == 0 {
		return
	}

	refID := b.add(Node{
		Kind:   KindReference,
		Title:  "Reference",
		Route:  "/reference/",
		Parent: None,
	})
	b.attach(root, refID)

	// Modules() is sorted by id, so parents always precede their submodules.
	moduleNodes := make(map[string]NodeID)
	for _, m := range reg.Modules() {
		route := registry.RouteFor(m.ID)
		if !b.claimRoute(route, m.ID) {
			continue
		}
		parent := refID
		if p, ok := parentModuleID(m.ID); ok {
			if pid, ok := moduleNodes[p]; ok {
				parent = pid
			}
		}
		id := b.add(Node{
			Kind:     KindModule,
			Title:    m.Title,
			Route:    route,
			Parent:   None,
			SymbolID: m.ID,
		})
		b.attach(parent, id)
		moduleNodes[m.ID] = id

		b.buildSymbols(id, reg, m, see)
	}
}

// buildSymbols attaches a module's symbols: grouped symbols under group
// nodes in group declaration order, the rest directly under the module.
func (b *builder) buildSymbols(moduleNode NodeID, reg *registry.Registry, m *registry.Module, see map[string][]resolve.Link) {
	grouped := make(map[string]NodeID)
	for _, g := range m.Groups {
		gid := b.add(Node{
			Kind:   KindGroup,
			Title:  g.Title,
			Parent: None,
		})
		b.attach(moduleNode, gid)
		for _, sid := range g.SymbolIDs {
			grouped[sid] = gid
		}
	}

	for _, s := range reg.Symbols(m.ID) {
		route := registry.RouteFor(s.ID)
		if !b.claimRoute(route, s.ID) {
			continue
		}
		parent := moduleNode
		if gid, ok := grouped[s.ID]; ok {
			parent = gid
		}
		id := b.add(Node{
			Kind:     KindSymbol,
			Title:    s.Title,
			Route:    route,
			Parent:   None,
			SymbolID: s.ID,
			See:      see[s.ID],
		})
		b.attach(parent, id)
	}
}

// thread assigns pre-order prev/next ids across the whole tree, skipping the
// root itself. Prev of the first page and next of the last stay None.
func (b *builder) thread() {
	var order []NodeID
	var walk func(NodeID)
	walk = func(id NodeID) {
		if id != 0 {
			order = append(order, id)
		}
		for _, c := range b.tree.Nodes[id].Children {
			walk(c)
		}
	}
	walk(0)

	for i, id := range order {
		if i > 0 {
			b.tree.Nodes[id].Prev = order[i-1]
		}
		if i < len(order)-1 {
			b.tree.Nodes[id].Next = order[i+1]
		}
	}
}

func parentModuleID(id string) (string, bool) {
	i := strings.LastIndex(id, ".")
	if i < 0 {
		return "", false
	}
	return id[:i], true
}

func canonical(route string) string {
	c := path.Clean(route)
	if c == "/" {
		return "/"
	}
	return c + "/"
}
