package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyPhase      = "phase"
	KeyDurationMS = "duration_ms"
	KeyPage       = "page"
	KeyRoute      = "route"
	KeyModule     = "module"
	KeySymbol     = "symbol"
	KeyCacheKey   = "cache_key"
	KeyDiagKind   = "diag_kind"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Phase(name string) slog.Attr     { return slog.String(KeyPhase, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Page(p string) slog.Attr         { return slog.String(KeyPage, p) }
func Route(r string) slog.Attr        { return slog.String(KeyRoute, r) }
func Module(m string) slog.Attr       { return slog.String(KeyModule, m) }
func Symbol(s string) slog.Attr       { return slog.String(KeySymbol, s) }
func CacheKey(k string) slog.Attr     { return slog.String(KeyCacheKey, k) }
func DiagKind(k string) slog.Attr     { return slog.String(KeyDiagKind, k) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
