package shape

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shaclpipe/shaclpipe/ldcontext"
	"github.com/shaclpipe/shaclpipe/mapping"
	"github.com/shaclpipe/shaclpipe/shacl"
)

// Registry loads and caches [Definition]s from on-disk shape folders or
// remote URLs. Definitions are loaded once per name and shared by reference
// afterwards; the Registry exclusively owns them for its lifetime.
//
// Create instances with [New]. A *Registry is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	searchPaths []string
	cacheDir    string
	client      *http.Client
	log         *slog.Logger
	defs        map[string]*Definition
}

// Option configures a [Registry].
type Option func(*Registry)

// WithSearchPath adds a directory searched by [Registry.Load]. A shape named
// N lives in <dir>/N/ following the naming convention documented on Load.
func WithSearchPath(dir string) Option {
	return func(r *Registry) { r.searchPaths = append(r.searchPaths, dir) }
}

// WithCacheDir sets the directory [Registry.Fetch] downloads into. Defaults
// to a "shaclpipe" folder under the user cache directory.
func WithCacheDir(dir string) Option {
	return func(r *Registry) { r.cacheDir = dir }
}

// WithHTTPClient sets the client used by [Registry.Fetch].
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) { r.client = c }
}

// WithLogger sets the logger for load warnings. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New returns an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		client: http.DefaultClient,
		log:    slog.Default(),
		defs:   map[string]*Definition{},
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.cacheDir == "" {
		if base, err := os.UserCacheDir(); err == nil {
			r.cacheDir = filepath.Join(base, "shaclpipe")
		}
	}

	return r
}

// AddSearchPath adds an on-disk location searched by [Registry.Load].
func (r *Registry) AddSearchPath(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.searchPaths = append(r.searchPaths, dir)
}

// Get returns a previously loaded Definition, or a [LoadError] with Kind
// [KindUnknownShape] if Load was never called for name.
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return nil, &LoadError{Kind: KindUnknownShape, Name: name,
			Message: fmt.Sprintf("shape not loaded; loaded shapes: %s", strings.Join(r.loadedNamesLocked(), ", "))}
	}

	return def, nil
}

// Names returns the loaded shape names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.loadedNamesLocked()
}

func (r *Registry) loadedNamesLocked() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Load loads (or returns the already-loaded) Definition for name. It walks
// the search paths for a folder named after the shape holding three files:
//
//	<Name>_SHACL.ttl
//	<name>_context.json
//	<name>_mapping.yaml
//
// where <Name> is the folder name with its first letter upper-cased and
// <name> with it lower-cased. Load is idempotent within a Registry instance.
func (r *Registry) Load(name string) (*Definition, error) {
	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()

	if ok {
		return def, nil
	}

	dir, err := r.findShapeDir(name)
	if err != nil {
		return nil, err
	}

	return r.LoadFromFiles(name,
		filepath.Join(dir, titleCase(name)+"_SHACL.ttl"),
		filepath.Join(dir, lowerCase(name)+"_context.json"),
		filepath.Join(dir, lowerCase(name)+"_mapping.yaml"),
	)
}

// LoadFromFiles loads a Definition from explicit SHACL, context, and mapping
// file paths and caches it under name.
func (r *Registry) LoadFromFiles(name, shaclPath, contextPath, mappingPath string) (*Definition, error) {
	shaclData, err := os.ReadFile(shaclPath)
	if err != nil {
		return nil, notFound(name, "reading SHACL file %s: %v", shaclPath, err)
	}

	contextData, err := os.ReadFile(contextPath)
	if err != nil {
		return nil, notFound(name, "reading context file %s: %v", contextPath, err)
	}

	mappingData, err := os.ReadFile(mappingPath)
	if err != nil {
		return nil, notFound(name, "reading mapping file %s: %v", mappingPath, err)
	}

	def, err := r.parse(name, shaclData, contextData, mappingData)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// A concurrent Load may have won; keep the first definition so every
	// consumer shares one reference.
	if existing, ok := r.defs[name]; ok {
		return existing, nil
	}

	r.defs[name] = def

	return def, nil
}

// parse assembles a Definition from raw file contents and cross-validates
// the mapping against both the context and the SHACL shape tree.
func (r *Registry) parse(name string, shaclData, contextData, mappingData []byte) (*Definition, error) {
	graph, err := shacl.ParseTurtle(shaclData)
	if err != nil {
		return nil, parseErr(name, err)
	}

	ctx, err := ldcontext.Parse(contextData)
	if err != nil {
		return nil, parseErr(name, err)
	}

	tree, err := shacl.BuildTree(graph, ctx)
	if err != nil {
		return nil, parseErr(name, err)
	}

	if err := mapping.ValidateSchema(mappingData); err != nil {
		return nil, parseErr(name, err)
	}

	cfg, err := mapping.ParseConfig(mappingData)
	if err != nil {
		return nil, parseErr(name, err)
	}

	if err := r.crossValidate(name, cfg, ctx, tree); err != nil {
		return nil, err
	}

	return &Definition{
		Name:    name,
		Graph:   graph,
		Shapes:  tree,
		Context: ctx,
		Mapping: cfg,
	}, nil
}

// crossValidate checks that the mapping references only terms the context
// defines and sub-shapes the SHACL tree declares. Undefined referenced terms
// fail the load; orphan context terms only warn.
func (r *Registry) crossValidate(name string, cfg *mapping.Config, ctx *ldcontext.Context, tree map[string]*shacl.NodeShapeInfo) error {
	used := map[string]bool{}

	for _, prop := range cfg.Properties {
		used[prop.Slot] = true

		if ctx.IRIFor(prop.Slot) == "" {
			return invalid(name, "sub-shape slot %q is not defined by the context", prop.Slot)
		}

		for _, f := range prop.Plan.Fields {
			used[f.Target] = true

			if ctx.IRIFor(f.Target) == "" {
				return invalid(name, "field %q in slot %q is not defined by the context", f.Target, prop.Slot)
			}
		}
	}

	for term := range ctx.Terms {
		if !used[term] && !strings.Contains(term, ":") {
			r.log.Warn("context term unused by mapping", "shape", name, "term", term)
		}
	}

	report, err := shacl.ValidateMapping(cfg, tree)
	if err != nil {
		return invalid(name, "%v", err)
	}

	for _, w := range report.Warnings() {
		r.log.Warn("mapping validation warning", "shape", name, "path", w.Path, "message", w.Message)
	}

	if errs := report.Errors(); len(errs) > 0 {
		first := errs[0]

		return invalid(name, "mapping does not satisfy shape %q: %s: %s (%d issues total)",
			cfg.Shape, first.Path, first.Message, len(errs))
	}

	return nil
}

func (r *Registry) findShapeDir(name string) (string, error) {
	r.mu.RLock()
	paths := append([]string(nil), r.searchPaths...)
	r.mu.RUnlock()

	if r.cacheDir != "" {
		paths = append(paths, r.cacheDir)
	}

	for _, base := range paths {
		dir := filepath.Join(base, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}

	return "", notFound(name, "no shape folder %q under search paths: %s", name, strings.Join(paths, ", "))
}

// ListShapes returns the shape folder names discoverable under the search
// paths, without loading them.
func (r *Registry) ListShapes() ([]string, error) {
	r.mu.RLock()
	paths := append([]string(nil), r.searchPaths...)
	r.mu.RUnlock()

	seen := map[string]bool{}

	var names []string

	for _, base := range paths {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}

		for _, e := range entries {
			if !e.IsDir() || seen[e.Name()] {
				continue
			}

			shaclFile := filepath.Join(base, e.Name(), titleCase(e.Name())+"_SHACL.ttl")
			if _, err := os.Stat(shaclFile); err != nil {
				continue
			}

			seen[e.Name()] = true

			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}

func lowerCase(s string) string {
	if s == "" {
		return s
	}

	return strings.ToLower(s[:1]) + s[1:]
}
