// Package discovery collects the URLs to evaluate from manifest files.
//
// Supported manifests, all read from one directory:
//
//	*.txt          one URL or path per line
//	*.xml          sitemap urlset
//	*.json         OpenAPI document or {"paths": [{"path": ...}]}
//	*.yaml, *.yml  OpenAPI document
//
// Relative paths are prefixed with the root URL. The first occurrence of
// every URL wins; order follows file name, then position in the file.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/endpointeval/internal/domain/dedupe"
	"github.com/okian/endpointeval/pkg/logger"
	"github.com/okian/endpointeval/pkg/metrics"
)

// Defaults for the manifest directory layout.
const (
	DefaultDir       = ".dynatrace"
	ConfigFileName   = "config.json"
	maxManifestBytes = 16 << 20
	defaultDebounce  = 500 * time.Millisecond
)

type parser func([]byte) ([]string, error)

var parsers = map[string]parser{ //nolint:gochecknoglobals // extension registry
	".txt":  parseText,
	".xml":  parseSitemap,
	".json": parseJSON,
	".yaml": parseYAML,
	".yml":  parseYAML,
}

// Option applies a configuration option to Discover and Watch.
type Option func(*options)

type options struct {
	log      logger.Logger
	debounce time.Duration
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithDebounce sets how long Watch waits for a burst of file events to
// settle before reporting a change.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func newOptions(opts []Option) options {
	o := options{log: logger.Nop(), debounce: defaultDebounce}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Discover scans dir and returns the distinct URLs found in its manifests.
func Discover(ctx context.Context, dir, rootURL string, opts ...Option) ([]string, error) {
	o := newOptions(opts)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrNoSources, dir, err)
	}

	seen := dedupe.NewInMemoryDeduper(dedupe.WithCapacity(len(entries) * 8))
	var urls []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || name == ConfigFileName {
			continue
		}

		path := filepath.Join(dir, name)
		found, err := parseFile(path)
		switch {
		case errors.Is(err, errUnknownExtension):
			o.log.Debug(ctx, "ignoring non-manifest file", logger.String("file", path))
			continue
		case errors.Is(err, ErrUnsupportedManifest):
			o.log.Warn(ctx, "skipping manifest with unsupported format", logger.String("file", path))
			continue
		case err != nil:
			return nil, err
		}

		added := 0
		for _, raw := range found {
			u := EnsureFullURL(raw, rootURL)
			if seen.SeenAndRecord(ctx, u) {
				continue
			}
			urls = append(urls, u)
			added++
		}
		o.log.Debug(ctx, "manifest parsed",
			logger.String("file", path),
			logger.Int("entries", len(found)),
			logger.Int("new", added),
		)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no URLs found in %s", ErrNoSources, dir)
	}
	metrics.UpdateEndpointsDiscovered(len(urls))
	o.log.Info(ctx, "endpoints discovered", logger.Int("count", len(urls)), logger.Strings("urls", urls))
	return urls, nil
}

func parseFile(path string) ([]string, error) {
	parse, ok := parsers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, errUnknownExtension
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParseManifest, path, err)
	}
	if info.Size() > maxManifestBytes {
		return nil, fmt.Errorf("%w %s: file larger than %d bytes", ErrParseManifest, path, maxManifestBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParseManifest, path, err)
	}

	urls, err := parse(data)
	if errors.Is(err, ErrUnsupportedManifest) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParseManifest, path, err)
	}
	return urls, nil
}
