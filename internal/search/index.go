// Package search provides full-text search over the mirrored catalog.
package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

// mappingVersion is incremented whenever the index mapping changes.
// A mismatch on startup triggers an automatic rebuild; the index is a
// pure derivative of the mirror so dropping it is always safe.
const mappingVersion = "1"

// CatalogIndex wraps a Bleve index over catalog entries.
//
// All public methods are safe for concurrent use. The mutex guards
// against index swaps during ReplaceAll.
type CatalogIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the catalog index.
type Options struct {
	DataPath string
	Logger   *slog.Logger
}

// NewCatalogIndex creates or opens the catalog index. A corrupted or
// version-mismatched index is removed and recreated empty; the next
// mirror sync repopulates it.
func NewCatalogIndex(opts Options) (*CatalogIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "catalog.bleve")
	versionPath := filepath.Join(opts.DataPath, "catalog.version")

	var index bleve.Index
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil || string(existingVersion) != mappingVersion {
			logger.Info("catalog index mapping changed, will rebuild",
				"new_version", mappingVersion)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		var err error
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing catalog index, will recreate",
				"path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		index = nil
	}

	if index == nil {
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0644); err != nil {
			logger.Warn("failed to write catalog index version file", "error", err)
		}
		logger.Info("created catalog index", "path", indexPath)
	}

	return &CatalogIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *CatalogIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// buildIndexMapping creates the Bleve mapping for catalog documents.
// Titles and authors get English stemming; tags and isbns are exact
// keyword fields.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = en.AnalyzerName
	titleField.Store = true
	titleField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("title", titleField)

	authorsField := bleve.NewTextFieldMapping()
	authorsField.Analyzer = en.AnalyzerName
	authorsField.Store = true
	authorsField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("authors", authorsField)

	tagsField := bleve.NewTextFieldMapping()
	tagsField.Analyzer = keyword.Name
	tagsField.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsField)

	isbnsField := bleve.NewTextFieldMapping()
	isbnsField.Analyzer = keyword.Name
	isbnsField.Store = true
	docMapping.AddFieldMappingsAt("isbns", isbnsField)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

// toDocument converts a catalog entry to its indexed form.
func toDocument(e *domain.CatalogEntry) map[string]any {
	return map[string]any{
		"title":   e.Title,
		"authors": e.Authors,
		"tags":    e.Tags,
		"isbns":   e.ISBNs,
	}
}

// ReplaceAll reindexes the full catalog in batches. Called after each
// mirror sync; the document set always mirrors the catalog exactly.
func (s *CatalogIndex) ReplaceAll(entries []domain.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop and recreate rather than diffing; catalogs are small enough
	// that a full reindex stays under a second.
	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}
	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index

	const batchSize = 500
	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))

		batch := s.index.NewBatch()
		for j := i; j < end; j++ {
			e := &entries[j]
			if err := batch.Index(strconv.FormatInt(e.ID, 10), toDocument(e)); err != nil {
				return fmt.Errorf("batch index %d: %w", e.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	s.logger.Info("catalog index rebuilt", "documents", len(entries))
	return nil
}

// DocumentCount returns the number of indexed catalog entries.
func (s *CatalogIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}
