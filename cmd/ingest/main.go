package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sdo-docs/models"
	"sdo-docs/storage"

	"github.com/kelseyhightower/envconfig"
	"gorm.io/gorm/clause"
)

// IngestConfig is the standalone configuration for the one-shot loader.
type IngestConfig struct {
	NASAADSAPIKey string `envconfig:"NASA_ADS_API_KEY" required:"true"`
	DatabasePath  string `envconfig:"DATABASE_PATH" default:"database/sdo_papers_2010_2024.db"`
	SearchURL     string `envconfig:"ADS_SEARCH_URL" default:"https://api.adsabs.harvard.edu/v1/search/query"`
	Query         string `envconfig:"ADS_QUERY" default:"abstract:\"SDO\" year:2010-2024"`
	Rows          int    `envconfig:"ADS_ROWS" default:"2000"`
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// searchResponse mirrors the relevant part of the ADS search API payload.
type searchResponse struct {
	Response struct {
		NumFound int         `json:"numFound"`
		Docs     []searchDoc `json:"docs"`
	} `json:"response"`
}

type searchDoc struct {
	ID            string   `json:"id"`
	Title         []string `json:"title"`
	Abstract      string   `json:"abstract"`
	Author        []string `json:"author"`
	Pubdate       string   `json:"pubdate"`
	DOI           []string `json:"doi"`
	Bibcode       string   `json:"bibcode"`
	CitationCount *int     `json:"citation_count"`
}

func main() {
	log.Println("Starting ADS ingest...")

	var cfg IngestConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config load error: %v", err)
	}

	docs, err := fetchDocuments(cfg)
	if err != nil {
		log.Fatalf("ADS search failed: %v", err)
	}
	log.Printf("ADS returned %d documents", len(docs))

	db, err := storage.NewWritableDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	if err := db.AutoMigrate(&models.Document{}); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	records := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		rec, err := toDocument(doc)
		if err != nil {
			log.Printf("Skipping record: %v", err)
			continue
		}
		records = append(records, rec)
	}

	// Re-runs are idempotent: ids are assigned by the ADS, so conflicts
	// mean the record is already loaded.
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(records, 200).Error; err != nil {
		log.Fatalf("Insert failed: %v", err)
	}

	log.Printf("Ingest finished: %d records written to %s", len(records), cfg.DatabasePath)
}

func fetchDocuments(cfg IngestConfig) ([]searchDoc, error) {
	params := url.Values{
		"q":    {cfg.Query},
		"fq":   {"property:refereed"},
		"sort": {"date desc"},
		"fl":   {"id,title,abstract,author,pubdate,doi,bibcode,citation_count"},
		"rows": {strconv.Itoa(cfg.Rows)},
	}

	req, err := http.NewRequest(http.MethodGet, cfg.SearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.NASAADSAPIKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ads search returned status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, err
	}
	return sr.Response.Docs, nil
}

func toDocument(doc searchDoc) (models.Document, error) {
	id, err := strconv.ParseInt(doc.ID, 10, 64)
	if err != nil {
		return models.Document{}, fmt.Errorf("non-numeric ads id %q", doc.ID)
	}

	rec := models.Document{
		ID:              id,
		Abstract:        doc.Abstract,
		Authors:         strings.Join(doc.Author, "; "),
		PublicationDate: doc.Pubdate,
		CitationCount:   doc.CitationCount,
	}
	if len(doc.Title) > 0 {
		rec.Title = doc.Title[0]
	}
	if len(doc.DOI) > 0 {
		rec.DOI = &doc.DOI[0]
	}
	if doc.Bibcode != "" {
		rec.Bibcode = &doc.Bibcode
	}
	return rec, nil
}
