// Package resolve is the second pass over parsed content: it rewrites pending
// cross-references into resolved links against the symbol registry and the
// full page set, and demotes everything unresolvable to plain text with a
// broken_reference diagnostic.
//
// Resolution runs only after parsing is complete, so forward references
// between pages need no declaration order.
package resolve

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"git.home.luguber.info/inful/quilldocs/internal/content"
	"git.home.luguber.info/inful/quilldocs/internal/diag"
	"git.home.luguber.info/inful/quilldocs/internal/observability"
	"git.home.luguber.info/inful/quilldocs/internal/registry"
)

// Link is a resolved cross-reference target.
type Link struct {
	Text     string `json:"text"`
	Route    string `json:"route"`
	SymbolID string `json:"symbol_id,omitempty"`
}

// Resolver resolves cross-references against a fixed registry and page set.
type Resolver struct {
	reg     *registry.Registry
	routes  map[string]string // guide source file -> page route
	byRoute map[string]*content.Document
	metrics *observability.Metrics
}

// New builds a resolver. routes maps every guide source file to its page
// route; the registry contributes the reference routes.
func New(reg *registry.Registry, routes map[string]string, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		reg:     reg,
		routes:  routes,
		byRoute: make(map[string]*content.Document),
		metrics: metrics,
	}
}

// ResolveDocuments rewrites every pending reference in every document in
// place. Unresolvable references become broken_reference diagnostics and the
// inline is demoted back to text, so one bad token never loses surrounding
// prose.
func (r *Resolver) ResolveDocuments(docs []*content.Document, report *diag.Report) {
	for _, doc := range docs {
		if route, ok := r.routes[doc.File]; ok {
			r.byRoute[route] = doc
		}
	}

	for _, doc := range docs {
		for i := range doc.Blocks {
			b := &doc.Blocks[i]
			r.resolveInlines(doc, b.Inlines, report)
			for _, item := range b.Items {
				r.resolveInlines(doc, item, report)
			}
		}
	}
}

func (r *Resolver) resolveInlines(doc *content.Document, inlines []content.Inline, report *diag.Report) {
	for i := range inlines {
		span := &inlines[i]
		if span.Kind != content.InlineRef || span.Ref == nil {
			continue
		}
		r.resolveInline(doc, span, report)
	}
}

func (r *Resolver) resolveInline(doc *content.Document, span *content.Inline, report *diag.Report) {
	ref := span.Ref
	loc := diag.Location{File: ref.File, Line: ref.Line}

	var (
		route, symbolID string
		err             error
	)
	switch ref.Kind {
	case content.RefSymbol:
		route, symbolID, err = r.resolveSymbol("", ref.Raw)
	case content.RefPage:
		route, err = r.resolvePage(doc, ref.Raw)
	case content.RefAnchor:
		route, err = r.resolveAnchor(doc, ref.Raw)
	default:
		err = fmt.Errorf("unknown reference kind %q", ref.Kind)
	}

	if err != nil {
		r.countOutcome("broken")
		report.Addf(diag.KindBrokenReference, loc, err.Error())
		span.Kind = content.InlineText
		if ref.Kind == content.RefSymbol {
			// Restore the bracket token as it appeared in the prose.
			span.Text = "[" + ref.Raw + "]"
		}
		span.Ref = nil
		return
	}

	r.countOutcome("resolved")
	span.Kind = content.InlineLink
	span.Target = route
	span.TargetID = symbolID
	span.Ref = nil
}

// resolveSymbol maps a bracket token to a registry entity. When scope names a
// module, the token is first tried relative to it (dotted relative paths
// included), so metadata crossrefs bind to their own module's names before
// anything global. Exact ids win next; a bare name then matches globally by
// short name, and multiple candidates are an error rather than a silent pick.
// Guide prose carries no module scope.
func (r *Resolver) resolveSymbol(scope, token string) (route, symbolID string, err error) {
	if scope != "" {
		qualified := scope + "." + token
		if s, ok := r.reg.Symbol(qualified); ok {
			return registry.RouteFor(s.ID), s.ID, nil
		}
		if m, ok := r.reg.Module(qualified); ok {
			return registry.RouteFor(m.ID), m.ID, nil
		}
	}
	if s, ok := r.reg.Symbol(token); ok {
		return registry.RouteFor(s.ID), s.ID, nil
	}
	if m, ok := r.reg.Module(token); ok {
		return registry.RouteFor(m.ID), m.ID, nil
	}

	candidates := r.reg.MatchShort(token)
	switch len(candidates) {
	case 1:
		return registry.RouteFor(candidates[0]), candidates[0], nil
	case 0:
		return "", "", fmt.Errorf("unknown symbol %q", token)
	default:
		sort.Strings(candidates)
		return "", "", fmt.Errorf("ambiguous reference %q matches %s; use a qualified name",
			token, strings.Join(candidates, ", "))
	}
}

// resolvePage maps a markdown link destination to a known page route. The
// destination may be a route, an absolute source path, or a path relative to
// the referencing file; an optional fragment must name an anchor that exists
// on the target page.
func (r *Resolver) resolvePage(doc *content.Document, target string) (string, error) {
	dest, fragment, _ := strings.Cut(target, "#")

	route, ok := r.pageRoute(doc, dest)
	if !ok {
		return "", fmt.Errorf("unknown page %q", target)
	}
	if fragment == "" {
		return route, nil
	}

	targetDoc, ok := r.byRoute[route]
	if !ok || !targetDoc.HasAnchor(fragment) {
		return "", fmt.Errorf("page %q has no anchor %q", dest, fragment)
	}
	return route + "#" + fragment, nil
}

func (r *Resolver) pageRoute(doc *content.Document, dest string) (string, bool) {
	if dest == "" {
		return "", false
	}

	if strings.HasPrefix(dest, "/") {
		if _, ok := r.byRoute[canonicalRoute(dest)]; ok {
			return canonicalRoute(dest), true
		}
		if route, ok := r.routes[strings.TrimPrefix(path.Clean(dest), "/")]; ok {
			return route, true
		}
		if strings.HasPrefix(canonicalRoute(dest), "/reference/") {
			id := referenceID(dest)
			if _, ok := r.reg.Module(id); ok {
				return canonicalRoute(dest), true
			}
			if _, ok := r.reg.Symbol(id); ok {
				return canonicalRoute(dest), true
			}
		}
		return "", false
	}

	rel := path.Clean(path.Join(path.Dir(doc.File), dest))
	if route, ok := r.routes[rel]; ok {
		return route, true
	}
	if route, ok := r.routes[dest]; ok {
		return route, true
	}
	return "", false
}

func (r *Resolver) resolveAnchor(doc *content.Document, name string) (string, error) {
	if !doc.HasAnchor(name) {
		return "", fmt.Errorf("no anchor %q on this page", name)
	}
	return "#" + name, nil
}

// ResolveSee resolves the raw "see also" tokens of every registry symbol into
// links, keyed by symbol id. Broken tokens are reported against the symbol's
// route.
func (r *Resolver) ResolveSee(report *diag.Report) map[string][]Link {
	out := make(map[string][]Link)
	for _, m := range r.reg.Modules() {
		for _, s := range r.reg.Symbols(m.ID) {
			if len(s.See) == 0 {
				continue
			}
			links := make([]Link, 0, len(s.See))
			for _, token := range s.See {
				route, id, err := r.resolveSymbol(s.Module, token)
				if err != nil {
					r.countOutcome("broken")
					report.Addf(diag.KindBrokenReference,
						diag.Location{File: registry.RouteFor(s.ID)}, err.Error())
					continue
				}
				r.countOutcome("resolved")
				links = append(links, Link{Text: token, Route: route, SymbolID: id})
			}
			if len(links) > 0 {
				out[s.ID] = links
			}
		}
	}
	return out
}

// ResolveDocs rewrites the crossref tokens inside registry descriptions the
// same way prose tokens are resolved: resolvable tokens become inline markdown
// links, broken ones stay literal and are reported against the declaring
// metadata file. Tokens are scoped to the declaring module first.
func (r *Resolver) ResolveDocs(report *diag.Report) {
	for _, m := range r.reg.Modules() {
		m.DocsResolved = r.resolveDocString(m.ID, m.Docs, m.File, report)
		for _, s := range r.reg.Symbols(m.ID) {
			s.DocsResolved = r.resolveDocString(s.Module, s.Docs, m.File, report)
		}
	}
}

func (r *Resolver) resolveDocString(scope, docs, file string, report *diag.Report) string {
	if docs == "" {
		return ""
	}
	return content.RefTokenPattern.ReplaceAllStringFunc(docs, func(match string) string {
		token := match[1 : len(match)-1]
		route, _, err := r.resolveSymbol(scope, token)
		if err != nil {
			r.countOutcome("broken")
			report.Addf(diag.KindBrokenReference, diag.Location{File: file}, err.Error())
			return match
		}
		r.countOutcome("resolved")
		return "[" + token + "](" + route + ")"
	})
}

func (r *Resolver) countOutcome(outcome string) {
	if r.metrics != nil {
		r.metrics.ReferencesTotal.WithLabelValues(outcome).Inc()
	}
}

// canonicalRoute normalizes a route-shaped destination to the trailing-slash
// form used everywhere else.
func canonicalRoute(dest string) string {
	c := path.Clean(dest)
	if c == "/" {
		return "/"
	}
	return c + "/"
}

// referenceID maps a /reference/... route back to a registry id.
func referenceID(dest string) string {
	trimmed := strings.Trim(strings.TrimPrefix(path.Clean(dest), "/reference"), "/")
	return strings.ReplaceAll(trimmed, "/", ".")
}
