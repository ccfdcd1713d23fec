package ingestion

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/machinerag/core"
)

// maxFetchBytes bounds a single fetched document.
var maxFetchBytes = 64 << 20

// source is one input to load, either top level or a reference found
// inside a property graph.
type source struct {
	origin string
	kind   core.SourceKind
	meta   core.MachineMeta
}

// kindOf maps a path or URL to the source kind by extension.
func kindOf(p string) (core.SourceKind, bool) {
	if u, err := url.Parse(p); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".json", ".jsonld":
		return core.SourceKindJSON, true
	case ".pdf":
		return core.SourceKindPDF, true
	}
	return "", false
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// expandSources resolves folders to the supported files below them.
// Unreadable or unsupported inputs are returned as errors and skipped.
func expandSources(inputs []string) ([]source, []error) {
	var out []source
	var errs []error
	for _, in := range inputs {
		if isRemote(in) {
			kind, ok := kindOf(in)
			if !ok {
				// remote graphs are often served without an extension
				kind = core.SourceKindJSON
			}
			out = append(out, source{origin: in, kind: kind})
			continue
		}

		info, err := os.Stat(in)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", core.ErrReferenceFetch, in, err))
			continue
		}
		if !info.IsDir() {
			kind, ok := kindOf(in)
			if !ok {
				errs = append(errs, fmt.Errorf("%w: unsupported file type %s", core.ErrSourceParse, in))
				continue
			}
			out = append(out, source{origin: in, kind: kind})
			continue
		}

		err = filepath.WalkDir(in, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %w", core.ErrReferenceFetch, p, err))
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if kind, ok := kindOf(p); ok {
				out = append(out, source{origin: p, kind: kind})
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errs
}

// Fetcher loads document bytes from local paths and http(s) URLs.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher whose remote requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch returns the bytes at location. Failures wrap core.ErrReferenceFetch.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if isRemote(location) {
		return f.fetchRemote(ctx, location)
	}
	p := strings.TrimPrefix(location, "file://")
	file, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrReferenceFetch, err)
	}
	defer file.Close()
	return readCapped(file, location)
}

// readCapped reads at most maxFetchBytes from r.
func readCapped(r io.Reader, location string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(maxFetchBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrReferenceFetch, err)
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", core.ErrReferenceFetch, location, maxFetchBytes)
	}
	return data, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrReferenceFetch, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrReferenceFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", core.ErrReferenceFetch, location, resp.Status)
	}
	return readCapped(resp.Body, location)
}

// resolveRef resolves a reference found in the graph loaded from base.
// Absolute URLs and absolute paths are returned unchanged; relative ones
// are resolved against base. A graph loaded over http(s) may only reference
// http(s) documents.
func resolveRef(base, ref string) (string, error) {
	if isRemote(base) {
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("%w: %w", core.ErrReferenceFetch, err)
		}
		r, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %w", core.ErrReferenceFetch, err)
		}
		resolved := b.ResolveReference(r).String()
		if !isRemote(resolved) {
			return "", fmt.Errorf("%w: remote graph %s references local document %q", core.ErrReferenceFetch, base, ref)
		}
		return resolved, nil
	}
	if isRemote(ref) || strings.HasPrefix(ref, "file://") {
		return ref, nil
	}
	if filepath.IsAbs(ref) {
		return ref, nil
	}
	if base == "" {
		return "", fmt.Errorf("%w: relative reference %q without a base", core.ErrReferenceFetch, ref)
	}
	return filepath.Join(filepath.Dir(base), filepath.FromSlash(ref)), nil
}
