// SPDX-License-Identifier: MPL-2.0

package feature

import (
	"archive/tar"
	"context"
	_ "crypto/sha256" // registers sha256 for go-digest
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/distribution/reference"
	"github.com/klauspost/compress/gzip"
	digest "github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/devcon/devcon/pkg/platform"
)

const (
	// maxManifestBytes bounds manifest and token responses.
	maxManifestBytes = 4 << 20

	// maxFeatureBytes bounds the uncompressed size of a single archive entry.
	maxFeatureBytes = 256 << 20

	mediaTypeDevcontainerLayer     = "application/vnd.devcontainers.layer.v1+tar"
	mediaTypeDevcontainerLayerGzip = "application/vnd.devcontainers.layer.v1+tar+gzip"

	defaultUserAgent = "devcon"
)

// ErrFetch is wrapped by every FetchError.
var ErrFetch = errors.New("feature fetch failed")

type (
	// Fetcher retrieves the metadata and files of a feature. baseDir is the
	// directory local ("./...") IDs resolve against.
	Fetcher interface {
		Fetch(ctx context.Context, id ID, baseDir string) (*Metadata, error)
	}

	// RegistryFetcher reads local features from disk and pulls OCI features
	// through the registry v2 HTTP API into an on-disk cache.
	RegistryFetcher struct {
		httpClient *http.Client
		cacheDir   string
		scheme     string
		userAgent  string
		logger     *log.Logger
	}

	// FetcherOption configures a RegistryFetcher.
	FetcherOption func(*RegistryFetcher)

	// FetchError describes a failed registry or filesystem operation.
	FetchError struct {
		ID  ID
		Op  string
		Err error
	}

	// Collection is the outcome of Collect: the declared features with
	// manifest claims applied, plus any undeclared dependencies.
	Collection struct {
		Stored   []FeatureSpec
		Project  []FeatureSpec
		Metadata map[ID]*Metadata
	}

	// tokenResponse is the registry's anonymous token payload.
	tokenResponse struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}

	// ociRef is a parsed registry location.
	ociRef struct {
		domain string
		path   string
		ref    string
	}
)

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching feature %s: %s: %v", e.ID, e.Op, e.Err)
}

// Unwrap exposes ErrFetch, ErrFeature and the cause.
func (e *FetchError) Unwrap() []error { return []error{ErrFetch, ErrFeature, e.Err} }

// WithHTTPClient sets the HTTP client used for registry requests.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *RegistryFetcher) { f.httpClient = c }
}

// WithCacheDir overrides the feature cache root.
func WithCacheDir(dir string) FetcherOption {
	return func(f *RegistryFetcher) { f.cacheDir = dir }
}

// WithInsecureRegistry talks plain HTTP to registries. Only meant for local
// test registries.
func WithInsecureRegistry() FetcherOption {
	return func(f *RegistryFetcher) { f.scheme = "http" }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *RegistryFetcher) { f.userAgent = ua }
}

// WithLogger replaces the default "feature" logger.
func WithLogger(l *log.Logger) FetcherOption {
	return func(f *RegistryFetcher) { f.logger = l }
}

// DefaultCacheDir returns <user cache dir>/devcon/features.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "devcon", "features")
}

// NewRegistryFetcher creates a fetcher using https, http.DefaultClient and
// DefaultCacheDir unless overridden.
func NewRegistryFetcher(opts ...FetcherOption) *RegistryFetcher {
	f := &RegistryFetcher{
		httpClient: http.DefaultClient,
		cacheDir:   DefaultCacheDir(),
		scheme:     "https",
		userAgent:  defaultUserAgent,
		logger:     log.NewWithOptions(os.Stderr, log.Options{Prefix: "feature"}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the feature's metadata with Dir pointing at a directory
// holding its files.
func (f *RegistryFetcher) Fetch(ctx context.Context, id ID, baseDir string) (*Metadata, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if id.IsLocal() {
		dir := string(id)
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		return ReadMetadata(id, filepath.Clean(dir))
	}

	loc, err := parseOCIRef(id)
	if err != nil {
		return nil, &FetchError{ID: id, Op: "parse reference", Err: err}
	}
	dir := f.cachePath(loc)
	if _, statErr := os.Stat(filepath.Join(dir, MetadataFile)); statErr == nil {
		f.logger.Debug("using cached feature", "id", id, "dir", dir)
		return ReadMetadata(id, dir)
	}

	f.logger.Info("downloading feature", "id", id)
	if err := f.download(ctx, id, loc, dir); err != nil {
		return nil, err
	}
	return ReadMetadata(id, dir)
}

// Collect fetches metadata for every declared feature and then, breadth
// first, for every dependsOn target a manifest names that nobody declared.
// Those are appended to the project list with SourceDependency and the
// options the dependent requested. IDs the user listed in dependsOn
// explicitly are not fetched here; Resolve reports them if missing.
func Collect(ctx context.Context, f Fetcher, baseDir string, stored, project []FeatureSpec) (*Collection, error) {
	c := &Collection{Metadata: make(map[ID]*Metadata)}
	declared := make(map[ID]bool)
	for _, s := range stored {
		declared[s.ID] = true
	}
	for _, s := range project {
		declared[s.ID] = true
	}

	fetch := func(id ID) (*Metadata, error) {
		if m, ok := c.Metadata[id]; ok {
			return m, nil
		}
		m, err := f.Fetch(ctx, id, baseDir)
		if err != nil {
			return nil, err
		}
		c.Metadata[id] = m
		return m, nil
	}

	var queue []*Metadata
	apply := func(in []FeatureSpec) ([]FeatureSpec, error) {
		out := make([]FeatureSpec, 0, len(in))
		for _, s := range in {
			m, err := fetch(s.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, ApplyMetadata(s, m))
			queue = append(queue, m)
		}
		return out, nil
	}

	var err error
	if c.Stored, err = apply(stored); err != nil {
		return nil, err
	}
	if c.Project, err = apply(project); err != nil {
		return nil, err
	}

	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		for _, dep := range m.DependsOn {
			if declared[dep.ID] {
				continue
			}
			declared[dep.ID] = true
			dm, err := fetch(dep.ID)
			if err != nil {
				return nil, err
			}
			spec := FeatureSpec{ID: dep.ID, Options: dep.Options, Source: SourceDependency}
			c.Project = append(c.Project, ApplyMetadata(spec, dm))
			queue = append(queue, dm)
		}
	}
	return c, nil
}

func parseOCIRef(id ID) (ociRef, error) {
	named, err := reference.ParseNormalizedNamed(string(id))
	if err != nil {
		return ociRef{}, err
	}
	loc := ociRef{domain: reference.Domain(named), path: reference.Path(named), ref: "latest"}
	if d, ok := named.(reference.Digested); ok {
		loc.ref = d.Digest().String()
	} else if t, ok := named.(reference.Tagged); ok {
		loc.ref = t.Tag()
	}
	return loc, nil
}

func (f *RegistryFetcher) cachePath(loc ociRef) string {
	elems := []string{f.cacheDir, cacheElem(loc.domain)}
	for seg := range strings.SplitSeq(loc.path, "/") {
		elems = append(elems, cacheElem(seg))
	}
	elems = append(elems, cacheElem(loc.ref))
	return filepath.Join(elems...)
}

// cacheElem makes one reference component usable as a directory name on
// every host: ports and digests contain ':' and Windows rejects device names.
func cacheElem(s string) string {
	s = strings.ReplaceAll(s, ":", "_")
	if platform.IsWindowsReservedName(s) {
		s += "_"
	}
	return s
}

func (f *RegistryFetcher) download(ctx context.Context, id ID, loc ociRef, dest string) error {
	token := f.token(ctx, loc)

	manifest, err := f.manifest(ctx, loc, token)
	if err != nil {
		return &FetchError{ID: id, Op: "manifest", Err: err}
	}
	if len(manifest.Layers) == 0 {
		return &FetchError{ID: id, Op: "manifest", Err: errors.New("manifest has no layers")}
	}
	layer := manifest.Layers[0]

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &FetchError{ID: id, Op: "cache", Err: err}
	}
	tmp, err := os.MkdirTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return &FetchError{ID: id, Op: "cache", Err: err}
	}
	defer func() { _ = os.RemoveAll(tmp) }() // no-op after a successful rename

	if err := f.fetchLayer(ctx, loc, token, layer, tmp); err != nil {
		return &FetchError{ID: id, Op: "layer " + layer.Digest.String(), Err: err}
	}
	if err := os.Rename(tmp, dest); err != nil {
		// Another process may have populated the cache first.
		if _, statErr := os.Stat(filepath.Join(dest, MetadataFile)); statErr == nil {
			return nil
		}
		return &FetchError{ID: id, Op: "cache", Err: err}
	}
	return nil
}

// token requests an anonymous pull token. Registries that do not issue
// tokens are accessed without one.
func (f *RegistryFetcher) token(ctx context.Context, loc ociRef) string {
	url := fmt.Sprintf("%s://%s/token?scope=repository:%s:pull&service=%s", f.scheme, loc.domain, loc.path, loc.domain)
	resp, err := f.do(ctx, url, "", "")
	if err != nil {
		f.logger.Debug("token request failed, continuing anonymously", "registry", loc.domain, "error", err)
		return ""
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		f.logger.Debug("no token issued, continuing anonymously", "registry", loc.domain, "status", resp.StatusCode)
		return ""
	}
	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxManifestBytes)).Decode(&tr); err != nil {
		return ""
	}
	if tr.Token != "" {
		return tr.Token
	}
	return tr.AccessToken
}

func (f *RegistryFetcher) manifest(ctx context.Context, loc ociRef, token string) (*v1.Manifest, error) {
	url := fmt.Sprintf("%s://%s/v2/%s/manifests/%s", f.scheme, loc.domain, loc.path, loc.ref)
	resp, err := f.do(ctx, url, token, v1.MediaTypeImageManifest)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	// A digest reference pins the manifest content itself.
	if pinned, parseErr := digest.Parse(loc.ref); parseErr == nil && digest.FromBytes(data) != pinned {
		return nil, fmt.Errorf("manifest digest mismatch: want %s", pinned)
	}
	var m v1.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

// fetchLayer streams the blob through a digest verifier while extracting it.
// The extraction only counts once the digest matches.
func (f *RegistryFetcher) fetchLayer(ctx context.Context, loc ociRef, token string, layer v1.Descriptor, dest string) error {
	if err := layer.Digest.Validate(); err != nil {
		return err
	}
	url := fmt.Sprintf("%s://%s/v2/%s/blobs/%s", f.scheme, loc.domain, loc.path, layer.Digest)
	resp, err := f.do(ctx, url, token, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	verifier := layer.Digest.Verifier()
	body := io.TeeReader(resp.Body, verifier)

	var archive io.Reader
	switch layer.MediaType {
	case mediaTypeDevcontainerLayer, v1.MediaTypeImageLayer:
		archive = body
	case mediaTypeDevcontainerLayerGzip, v1.MediaTypeImageLayerGzip:
		gz, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer func() { _ = gz.Close() }()
		archive = gz
	default:
		return fmt.Errorf("unsupported layer media type %q", layer.MediaType)
	}

	if err := extractTar(archive, dest); err != nil {
		return err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return fmt.Errorf("reading blob: %w", err)
	}
	if !verifier.Verified() {
		return fmt.Errorf("digest mismatch for %s", layer.Digest)
	}
	return nil
}

func (f *RegistryFetcher) do(ctx context.Context, url, token, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// extractTar unpacks regular files and directories into dest. Entries that
// would land outside dest are rejected; links and devices are skipped.
func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		name := filepath.Clean(filepath.FromSlash(hdr.Name))
		if name == "." {
			continue
		}
		if !filepath.IsLocal(name) {
			return fmt.Errorf("archive entry %q escapes the feature directory", hdr.Name)
		}
		target := filepath.Join(dest, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(tr, target, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		}
	}
}

func writeEntry(r io.Reader, target string, perm fs.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm|0o200)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	n, err := io.Copy(out, io.LimitReader(r, maxFeatureBytes+1))
	if err != nil {
		return fmt.Errorf("extracting %s: %w", filepath.Base(target), err)
	}
	if n > maxFeatureBytes {
		return fmt.Errorf("extracting %s: entry exceeds %d bytes", filepath.Base(target), maxFeatureBytes)
	}
	return nil
}

var _ Fetcher = (*RegistryFetcher)(nil)
