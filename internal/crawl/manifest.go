package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Manifest is the persisted per-category handoff artifact between the
// collect and ingest stages.
type Manifest struct {
	CategoryURL string   `json:"category_url"`
	Breadcrumbs []string `json:"breadcrumbs"`
	ProductURLs []string `json:"product_urls"`
}

// ManifestSink writes one manifest file per category under a root dir.
type ManifestSink struct {
	root   string
	logger *zap.Logger
}

// NewManifestSink returns a sink rooted at dir, creating it if needed.
func NewManifestSink(root string, logger *zap.Logger) (*ManifestSink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create manifest dir %s: %w", root, err)
	}
	return &ManifestSink{root: root, logger: logger}, nil
}

// Write persists one manifest. Product URLs are sorted and deduplicated so
// re-running the crawler against the same pages produces an identical file.
func (s *ManifestSink) Write(ctx context.Context, m Manifest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}

	m.ProductURLs = dedupSorted(m.ProductURLs)

	target := filepath.Join(s.root, slug(m.CategoryURL)+".json")
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return "", fmt.Errorf("write manifest %s: %w", target, err)
	}

	s.logger.Info("Manifest written",
		zap.String("path", target),
		zap.Int("product_urls", len(m.ProductURLs)),
	)
	return target, nil
}

// LoadManifests reads every manifest file under dir.
func LoadManifests(dir string) ([]Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read manifest dir %s: %w", dir, err)
	}

	var manifests []Manifest
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", path, err)
		}
		var m Manifest
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// slug derives a stable file name from the category URL's last path segment.
func slug(rawURL string) string {
	trimmed := strings.Trim(rawURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	var b strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "home"
	}
	return b.String()
}

func dedupSorted(in []string) []string {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
