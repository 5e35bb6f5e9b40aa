// Package api serves a decoded index over HTTP.
//
// Routes:
//
//	GET /healthz
//	GET /packages?offset=&limit=
//	GET /packages/{name}
//	GET /keywords
//	GET /categories
//
// Package records are decoded lazily from the dump and kept in an LRU cache
// keyed by rank position.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matzehuels/crateindex/pkg/crates"
	errs "github.com/matzehuels/crateindex/pkg/errors"
	cio "github.com/matzehuels/crateindex/pkg/io"
	"github.com/matzehuels/crateindex/pkg/observability"
)

const (
	// DefaultCacheSize is the number of decoded records kept in memory.
	DefaultCacheSize = 4096

	// DefaultLimit is the page size when the limit parameter is absent.
	DefaultLimit = 50

	// MaxLimit caps the page size.
	MaxLimit = 1000
)

// Server answers read-only queries against one index.
type Server struct {
	idx    *cio.Index
	byName map[string]int
	cache  *lru.Cache[int, crates.Package]
	logger *log.Logger
}

// Option configures a Server.
type Option func(*config)

type config struct {
	cacheSize int
	logger    *log.Logger
}

// WithCacheSize sets the record cache size. Values below one use the default.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New indexes package names and prepares the record cache. A record whose
// name cannot be decoded fails construction with a DECODE error.
func New(idx *cio.Index, opts ...Option) (*Server, error) {
	if idx == nil || idx.Packages == nil {
		return nil, errs.New(errs.ErrCodeInvalidInput, "index is required")
	}
	cfg := config{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.cacheSize < 1 {
		cfg.cacheSize = DefaultCacheSize
	}
	if cfg.logger == nil {
		cfg.logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	cache, err := lru.New[int, crates.Package](cfg.cacheSize)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "record cache")
	}

	byName := make(map[string]int, idx.Packages.Len())
	for i := 0; i < idx.Packages.Len(); i++ {
		name, err := idx.Packages.Name(i)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeDecode, err, "index names")
		}
		if _, dup := byName[name]; !dup {
			byName[name] = i
		}
	}

	return &Server{idx: idx, byName: byName, cache: cache, logger: cfg.logger}, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)
	r.Get("/packages", s.listPackages)
	r.Get("/packages/{name}", s.getPackage)
	r.Get("/keywords", s.listKeywords)
	r.Get("/categories", s.listCategories)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "id", middleware.GetReqID(r.Context()))
	})
}

// =============================================================================
// Handlers
// =============================================================================

// PackageView is the JSON shape of one package with resolved names.
type PackageView struct {
	crates.Package
	Rank          int      `json:"rank"`
	KeywordNames  []string `json:"keyword_names"`
	CategoryNames []string `json:"category_names"`
}

// Page is the JSON shape of a package listing.
type Page struct {
	Total    int           `json:"total"`
	Offset   int           `json:"offset"`
	Limit    int           `json:"limit"`
	Packages []PackageView `json:"packages"`
}

type healthStatus struct {
	Status      string `json:"status"`
	Packages    int    `json:"packages"`
	LastUpdated string `json:"last_updated,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{
		Status:      "ok",
		Packages:    s.idx.Packages.Len(),
		LastUpdated: s.idx.LastUpdated,
	})
}

func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, errs.ErrCodeInvalidInput, "offset must be a non-negative integer")
		return
	}
	limit, err := intParam(r, "limit", DefaultLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, errs.ErrCodeInvalidInput, "limit must be a positive integer")
		return
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	total := s.idx.Packages.Len()
	page := Page{Total: total, Offset: offset, Limit: limit, Packages: []PackageView{}}
	for i := offset; i < total && i < offset+limit; i++ {
		v, err := s.view(r.Context(), i)
		if err != nil {
			s.fail(w, err)
			return
		}
		page.Packages = append(page.Packages, v)
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getPackage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := errs.ValidateCrateName(name); err != nil {
		writeError(w, http.StatusBadRequest, errs.GetCode(err), errs.UserMessage(err))
		return
	}
	i, ok := s.byName[name]
	if !ok {
		writeError(w, http.StatusNotFound, errs.ErrCodeNotFound, "package "+strconv.Quote(name)+" not found")
		return
	}
	v, err := s.view(r.Context(), i)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) listKeywords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stringKeys(s.idx.Keywords))
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stringKeys(s.idx.Categories))
}

// =============================================================================
// Record Access
// =============================================================================

// Package returns the record at rank position i, decoding it on a cache miss.
func (s *Server) Package(ctx context.Context, i int) (crates.Package, error) {
	const keyType = "package"
	if p, ok := s.cache.Get(i); ok {
		observability.Cache().OnCacheHit(ctx, keyType)
		return p, nil
	}
	observability.Cache().OnCacheMiss(ctx, keyType)

	p, err := s.idx.Packages.Package(i)
	if err != nil {
		return crates.Package{}, errs.Wrap(errs.ErrCodeDecode, err, "decode package %d", i)
	}
	s.cache.Add(i, p)
	observability.Cache().OnCacheSet(ctx, keyType, len(s.idx.Packages.Record(i)))
	return p, nil
}

// Lookup returns the rank position of name.
func (s *Server) Lookup(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

func (s *Server) view(ctx context.Context, i int) (PackageView, error) {
	p, err := s.Package(ctx, i)
	if err != nil {
		return PackageView{}, err
	}
	return PackageView{
		Package:       p,
		Rank:          i + 1,
		KeywordNames:  s.idx.KeywordNames(p.Keywords),
		CategoryNames: s.idx.CategoryNames(p.Categories),
	}, nil
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", "err", err)
	writeError(w, http.StatusInternalServerError, errs.GetCode(err), errs.UserMessage(err))
}

// =============================================================================
// Helpers
// =============================================================================

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func stringKeys[K ~uint32](m map[K]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strconv.FormatUint(uint64(k), 10)] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errs.Code, msg string) {
	writeJSON(w, status, apiError{Code: string(code), Message: msg})
}
