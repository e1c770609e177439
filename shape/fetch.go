package shape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/shaclpipe/shaclpipe/ldcontext"
	"github.com/shaclpipe/shaclpipe/mapping"
	"github.com/shaclpipe/shaclpipe/shacl"
)

// fetchEntry is one cached download, keyed by URL in the cache index.
type fetchEntry struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	Path         string `json:"path"`
}

const fetchIndexName = "fetch_index.json"

// Fetch downloads a shape's SHACL and context files into the cache
// directory under a folder named after the shape, then loads the resulting
// Definition. Downloads are conditional: a cached copy's ETag and
// Last-Modified are sent as If-None-Match/If-Modified-Since and a 304
// response reuses the file on disk. If the shape folder has no mapping file
// yet, a skeleton mapping is generated from the downloaded SHACL shape so
// the fetched shape is loadable immediately.
func (r *Registry) Fetch(ctx context.Context, name, shaclURL, contextURL string) (*Definition, error) {
	if r.cacheDir == "" {
		return nil, invalid(name, "no cache directory configured for fetch")
	}

	dir := filepath.Join(r.cacheDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, invalid(name, "creating cache dir %s: %v", dir, err)
	}

	index, err := r.loadFetchIndex()
	if err != nil {
		return nil, err
	}

	shaclPath := filepath.Join(dir, titleCase(name)+"_SHACL.ttl")
	contextPath := filepath.Join(dir, lowerCase(name)+"_context.json")
	mappingPath := filepath.Join(dir, lowerCase(name)+"_mapping.yaml")

	if err := r.fetchOne(ctx, index, shaclURL, shaclPath); err != nil {
		return nil, &LoadError{Kind: KindNotFound, Name: name, Message: err.Error()}
	}

	if err := r.fetchOne(ctx, index, contextURL, contextPath); err != nil {
		return nil, &LoadError{Kind: KindNotFound, Name: name, Message: err.Error()}
	}

	if err := r.saveFetchIndex(index); err != nil {
		return nil, err
	}

	if _, err := os.Stat(mappingPath); errors.Is(err, os.ErrNotExist) {
		if err := r.writeTemplateMapping(name, shaclPath, contextPath, contextURL, mappingPath); err != nil {
			return nil, err
		}
	}

	return r.LoadFromFiles(name, shaclPath, contextPath, mappingPath)
}

// fetchOne performs one conditional GET, writing the body to path on 200 and
// keeping the existing file on 304.
func (r *Registry) fetchOne(ctx context.Context, index map[string]fetchEntry, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}

	entry, cached := index[url]
	if cached {
		if _, statErr := os.Stat(entry.Path); statErr != nil {
			cached = false
		}
	}

	if cached {
		if entry.ETag != "" {
			req.Header.Set("If-None-Match", entry.ETag)
		}

		if entry.LastModified != "" {
			req.Header.Set("If-Modified-Since", entry.LastModified)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && cached:
		r.log.Debug("fetch cache hit", "url", url, "path", entry.Path)

		return nil
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s: %w", url, err)
	}

	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	index[url] = fetchEntry{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Path:         path,
	}

	return nil
}

// writeTemplateMapping generates a skeleton mapping for a freshly fetched
// shape so the shape folder is immediately loadable; the author fills in
// source columns afterwards.
func (r *Registry) writeTemplateMapping(name, shaclPath, contextPath, contextURL, mappingPath string) error {
	shaclData, err := os.ReadFile(shaclPath)
	if err != nil {
		return notFound(name, "reading fetched SHACL: %v", err)
	}

	contextData, err := os.ReadFile(contextPath)
	if err != nil {
		return notFound(name, "reading fetched context: %v", err)
	}

	graph, err := shacl.ParseTurtle(shaclData)
	if err != nil {
		return parseErr(name, err)
	}

	ctx, err := ldcontext.Parse(contextData)
	if err != nil {
		return parseErr(name, err)
	}

	tree, err := shacl.BuildTree(graph, ctx)
	if err != nil {
		return parseErr(name, err)
	}

	rootName, err := rootShapeName(tree, name)
	if err != nil {
		return invalid(name, "%v", err)
	}

	cfg, err := shacl.GenerateTemplate(tree, rootName, ctx)
	if err != nil {
		return invalid(name, "generating mapping template: %v", err)
	}

	cfg.ContextURL = contextURL

	data, err := mapping.Encode(cfg)
	if err != nil {
		return invalid(name, "encoding mapping template: %v", err)
	}

	if err := os.WriteFile(mappingPath, data, 0o644); err != nil {
		return invalid(name, "writing mapping template: %v", err)
	}

	r.log.Info("generated skeleton mapping for fetched shape", "shape", name, "path", mappingPath)

	return nil
}

// rootShapeName resolves which NodeShape a fetched shape folder targets:
// the folder name itself (title-cased), its "<Name>Shape" variant, or the
// single shape no other shape references as a child.
func rootShapeName(tree map[string]*shacl.NodeShapeInfo, name string) (string, error) {
	for _, candidate := range []string{titleCase(name), titleCase(name) + "Shape"} {
		if _, ok := tree[candidate]; ok {
			return candidate, nil
		}
	}

	referenced := map[string]bool{}

	for _, info := range tree {
		for _, child := range info.ChildShapes {
			referenced[child.Name] = true
		}
	}

	var roots []string

	for shapeName := range tree {
		if !referenced[shapeName] {
			roots = append(roots, shapeName)
		}
	}

	if len(roots) != 1 {
		return "", fmt.Errorf("cannot determine the root shape for %q (candidates: %v)", name, roots)
	}

	return roots[0], nil
}

func (r *Registry) loadFetchIndex() (map[string]fetchEntry, error) {
	index := map[string]fetchEntry{}

	data, err := os.ReadFile(filepath.Join(r.cacheDir, fetchIndexName))
	if errors.Is(err, os.ErrNotExist) {
		return index, nil
	} else if err != nil {
		return nil, invalid("fetch", "reading fetch index: %v", err)
	}

	if err := json.Unmarshal(data, &index); err != nil {
		return nil, invalid("fetch", "parsing fetch index: %v", err)
	}

	return index, nil
}

func (r *Registry) saveFetchIndex(index map[string]fetchEntry) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return invalid("fetch", "encoding fetch index: %v", err)
	}

	if err := os.WriteFile(filepath.Join(r.cacheDir, fetchIndexName), data, 0o644); err != nil {
		return invalid("fetch", "writing fetch index: %v", err)
	}

	return nil
}
