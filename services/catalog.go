package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sdo-docs/config"
	"sdo-docs/models"
	"sdo-docs/providers/ads"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the requested document id does not exist.
var ErrNotFound = errors.New("document not found")

// ErrInvalidPage is returned for out-of-range pagination parameters.
var ErrInvalidPage = errors.New("invalid pagination parameters")

// ErrEmptyQuery is returned for an empty or whitespace-only search query.
var ErrEmptyQuery = errors.New("search query must not be empty")

// CatalogService answers read queries against the document store.
type CatalogService struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(cfg *config.Config, db *gorm.DB, logger *zap.Logger) *CatalogService {
	return &CatalogService{Config: cfg, DB: db, Logger: logger}
}

// ListDocuments returns one page of documents in primary-key order,
// optionally restricted to a publication year.
func (s *CatalogService) ListDocuments(skip, limit int, year *int) ([]models.PublicDocument, error) {
	skip, limit, err := s.clampPage(skip, limit)
	if err != nil {
		return nil, err
	}

	query := s.DB.Model(&models.Document{})
	if year != nil {
		query = query.Where("publication_date LIKE ?", fmt.Sprintf("%d%%", *year))
	}

	var docs []models.Document
	if err := query.Order("id").Offset(skip).Limit(limit).Find(&docs).Error; err != nil {
		s.Logger.Error("Document list query failed", zap.Error(err))
		return nil, err
	}
	return s.enrich(docs), nil
}

// GetDocument returns a single document by id.
func (s *CatalogService) GetDocument(id int64) (*models.PublicDocument, error) {
	var doc models.Document
	if err := s.DB.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		s.Logger.Error("Document lookup failed", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	pub := s.public(doc)
	return &pub, nil
}

// SearchDocuments returns documents whose title or abstract contains q,
// case-insensitively, in store order. No ranking.
func (s *CatalogService) SearchDocuments(q string, skip, limit int) ([]models.PublicDocument, error) {
	if strings.TrimSpace(q) == "" {
		return nil, ErrEmptyQuery
	}
	skip, limit, err := s.clampPage(skip, limit)
	if err != nil {
		return nil, err
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var docs []models.Document
	if err := s.DB.
		Where("LOWER(title) LIKE ? OR LOWER(abstract) LIKE ?", pattern, pattern).
		Order("id").Offset(skip).Limit(limit).
		Find(&docs).Error; err != nil {
		s.Logger.Error("Document search failed", zap.String("q", q), zap.Error(err))
		return nil, err
	}
	return s.enrich(docs), nil
}

// YearRange is the inclusive publication-year span of the collection.
type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// CollectionStats aggregates the whole store. YearRange is nil when the
// store is empty.
type CollectionStats struct {
	TotalDocuments int64      `json:"total_documents"`
	YearRange      *YearRange `json:"year_range"`
	TotalCitations int64      `json:"total_citations"`
}

// Stats computes collection statistics. Missing citation counts count as
// zero; years come from the leading four digits of publication_date.
func (s *CatalogService) Stats() (*CollectionStats, error) {
	stats := &CollectionStats{}

	if err := s.DB.Model(&models.Document{}).Count(&stats.TotalDocuments).Error; err != nil {
		s.Logger.Error("Stats count query failed", zap.Error(err))
		return nil, err
	}

	var minYear, maxYear sql.NullInt64
	row := s.DB.Model(&models.Document{}).
		Where("publication_date IS NOT NULL AND length(publication_date) >= 4").
		Select("MIN(CAST(substr(publication_date, 1, 4) AS INTEGER)), MAX(CAST(substr(publication_date, 1, 4) AS INTEGER))").
		Row()
	if err := row.Scan(&minYear, &maxYear); err != nil {
		s.Logger.Error("Stats year query failed", zap.Error(err))
		return nil, err
	}
	if minYear.Valid && maxYear.Valid {
		stats.YearRange = &YearRange{Min: int(minYear.Int64), Max: int(maxYear.Int64)}
	}

	if err := s.DB.Model(&models.Document{}).
		Select("COALESCE(SUM(COALESCE(citation_count, 0)), 0)").
		Scan(&stats.TotalCitations).Error; err != nil {
		s.Logger.Error("Stats citation query failed", zap.Error(err))
		return nil, err
	}

	return stats, nil
}

// clampPage validates skip/limit. A limit above the cap is clamped, not
// rejected; a non-positive limit or negative skip is caller error.
func (s *CatalogService) clampPage(skip, limit int) (int, int, error) {
	if skip < 0 || limit < 1 {
		return 0, 0, ErrInvalidPage
	}
	if limit > s.Config.MaxPageSize {
		limit = s.Config.MaxPageSize
	}
	return skip, limit, nil
}

// public attaches the computed ads_url. Derivation is cheap, so it happens
// on every response rather than being stored.
func (s *CatalogService) public(doc models.Document) models.PublicDocument {
	pub := models.PublicDocument{Document: doc}
	if doc.Bibcode != nil && *doc.Bibcode != "" {
		catalog := ads.Links(s.Config.ADSBaseURL, *doc.Bibcode).Catalog
		pub.ADSURL = &catalog
	}
	return pub
}

func (s *CatalogService) enrich(docs []models.Document) []models.PublicDocument {
	out := make([]models.PublicDocument, 0, len(docs))
	for _, doc := range docs {
		out = append(out, s.public(doc))
	}
	return out
}
