package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	"scorehub.io/cli/internal/core/domain"
	"scorehub.io/cli/internal/infrastructure/atomicfile"
)

// IndexEntry is one plugin advertised by the remote plugin index.
type IndexEntry struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

type indexFile struct {
	Plugins []IndexEntry `json:"plugins"`
}

// CatalogEntry merges the remote index with the local registry into the view
// the plugin listing shows: everything known, with its local state.
type CatalogEntry struct {
	Name        string
	URL         string
	Version     string
	Status      string
	Description string
}

// Catalog maintains a local copy of the remote plugin index and merges it
// with installed records.
type Catalog struct {
	indexPath string
	indexURL  string
	client    *http.Client
	logger    hclog.Logger
}

// NewCatalog creates a catalog caching the index at indexPath.
func NewCatalog(indexPath, indexURL string, logger hclog.Logger) *Catalog {
	return &Catalog{
		indexPath: indexPath,
		indexURL:  indexURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger.Named("plugin-catalog"),
	}
}

// Refresh downloads the plugin index. Unless force is set, an existing local
// copy is kept as-is.
func (c *Catalog) Refresh(ctx context.Context, force bool) error {
	if !force {
		if _, err := os.Stat(c.indexPath); err == nil {
			c.logger.Debug("plugin index already present", "path", c.indexPath)
			return nil
		}
	}
	if c.indexURL == "" {
		return fmt.Errorf("no plugin index URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.indexURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build index request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download plugin index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("plugin index download returned %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read plugin index: %w", err)
	}
	var parsed indexFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("plugin index is not valid JSON: %w", err)
	}
	if err := atomicfile.Write(c.indexPath, data, 0o644); err != nil {
		return err
	}
	c.logger.Info("refreshed plugin index", "plugins", len(parsed.Plugins))
	return nil
}

// Entries returns the cached index contents. A missing cache yields an empty
// list, not an error; the catalog degrades to showing installed plugins only.
func (c *Catalog) Entries() ([]IndexEntry, error) {
	data, err := os.ReadFile(c.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read plugin index: %w", err)
	}
	var parsed indexFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse plugin index: %w", err)
	}
	return parsed.Plugins, nil
}

// Merge combines index entries and installed records, ordered by name.
func Merge(index []IndexEntry, records []domain.PluginRecord) []CatalogEntry {
	merged := make(map[string]CatalogEntry)
	for _, entry := range index {
		merged[entry.Name] = CatalogEntry{
			Name:        entry.Name,
			URL:         entry.URL,
			Version:     "-",
			Status:      "available",
			Description: entry.Description,
		}
	}
	for _, rec := range records {
		entry := merged[rec.Manifest.ID]
		entry.Name = rec.Manifest.ID
		entry.Version = rec.InstalledVersion
		entry.Status = string(rec.State)
		if entry.Description == "" {
			entry.Description = rec.Manifest.Description
		}
		merged[rec.Manifest.ID] = entry
	}

	out := make([]CatalogEntry, 0, len(merged))
	for _, entry := range merged {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
