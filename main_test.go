package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"sdo-docs/config"
	"sdo-docs/models"
	"sdo-docs/providers/ads"
	"sdo-docs/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	arxivBibcode = "2012SoPh..275...17L" // arXiv mirror serves a PDF
	htmlBibcode  = "2016SoPh..291.3061H" // both mirrors answer HTML-200
	testPDFBody  = "%PDF-1.4 test payload"
)

// gatewayStub mimics the ADS link gateway: it records every request and
// answers per bibcode.
type gatewayStub struct {
	mu   sync.Mutex
	hits []string
	srv  *httptest.Server
}

func newGatewayStub(t *testing.T) *gatewayStub {
	t.Helper()
	g := &gatewayStub{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.hits = append(g.hits, r.URL.Path)
		g.mu.Unlock()

		switch {
		case strings.Contains(r.URL.Path, htmlBibcode):
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html>not available</html>"))
		case strings.Contains(r.URL.Path, arxivBibcode) && strings.HasSuffix(r.URL.Path, "EPRINT_PDF"):
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte(testPDFBody))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *gatewayStub) hitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.hits)
}

func newTestServer(t *testing.T) (*gin.Engine, *gatewayStub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}))

	arxivBib, htmlBib := arxivBibcode, htmlBibcode
	citations := 42
	docs := []models.Document{
		{ID: 1, Title: "AIA instrument overview", Abstract: "The Atmospheric Imaging Assembly.", Authors: "Lemen, J.", PublicationDate: "2012-01-15", Bibcode: &arxivBib, CitationCount: &citations},
		{ID: 2, Title: "Unlinked technical report", Abstract: "No bibcode on record.", Authors: "Doe, J.", PublicationDate: "2013-06-00"},
		{ID: 3, Title: "Paywalled flare study", Abstract: "Only HTML behind the gateway.", Authors: "Roe, R.", PublicationDate: "2016-02-01", Bibcode: &htmlBib},
	}
	require.NoError(t, db.Create(&docs).Error)

	gateway := newGatewayStub(t)
	cfg := &config.Config{
		ADSBaseURL:      gateway.srv.URL,
		DefaultPageSize: 100,
		MaxPageSize:     1000,
	}
	logging := zap.NewNop()
	catalog := services.NewCatalogService(cfg, db, logging)
	fetcher := ads.NewFetcher(cfg, logging)

	return setupRouter(catalog, fetcher, logging), gateway
}

func doGet(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestRootAndHealth(t *testing.T) {
	router, _ := newTestServer(t)

	w := doGet(t, router, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	decodeJSON(t, w, &body)
	assert.Equal(t, apiTitle, body["message"])

	w = doGet(t, router, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListDocuments(t *testing.T) {
	router, _ := newTestServer(t)

	w := doGet(t, router, "/documents")
	require.Equal(t, http.StatusOK, w.Code)
	var docs []models.PublicDocument
	decodeJSON(t, w, &docs)
	require.Len(t, docs, 3)
	require.NotNil(t, docs[0].ADSURL)
	assert.Contains(t, *docs[0].ADSURL, "/abs/")
	assert.Nil(t, docs[1].ADSURL)
}

func TestListDocumentsYearAndPaging(t *testing.T) {
	router, _ := newTestServer(t)

	w := doGet(t, router, "/documents?year=2012")
	require.Equal(t, http.StatusOK, w.Code)
	var docs []models.PublicDocument
	decodeJSON(t, w, &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(1), docs[0].ID)

	w = doGet(t, router, "/documents?skip=2&limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	docs = nil
	decodeJSON(t, w, &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(3), docs[0].ID)

	assert.Equal(t, http.StatusBadRequest, doGet(t, router, "/documents?year=twenty").Code)
	assert.Equal(t, http.StatusBadRequest, doGet(t, router, "/documents?skip=-1").Code)
	assert.Equal(t, http.StatusBadRequest, doGet(t, router, "/documents?limit=0").Code)
}

func TestGetDocument(t *testing.T) {
	router, _ := newTestServer(t)

	w := doGet(t, router, "/documents/1")
	require.Equal(t, http.StatusOK, w.Code)
	var doc models.PublicDocument
	decodeJSON(t, w, &doc)
	assert.Equal(t, "AIA instrument overview", doc.Title)

	assert.Equal(t, http.StatusNotFound, doGet(t, router, "/documents/999").Code)
	assert.Equal(t, http.StatusBadRequest, doGet(t, router, "/documents/abc").Code)
}

func TestSearchDocuments(t *testing.T) {
	router, _ := newTestServer(t)

	w := doGet(t, router, "/documents/search?q=imaging")
	require.Equal(t, http.StatusOK, w.Code)
	var docs []models.PublicDocument
	decodeJSON(t, w, &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(1), docs[0].ID)

	assert.Equal(t, http.StatusBadRequest, doGet(t, router, "/documents/search").Code)
	assert.Equal(t, http.StatusBadRequest, doGet(t, router, "/documents/search?q=%20%20").Code)
}

func TestDocumentLinks(t *testing.T) {
	router, _ := newTestServer(t)

	w := doGet(t, router, "/documents/1/links")
	require.Equal(t, http.StatusOK, w.Code)
	var links ads.LinkSet
	decodeJSON(t, w, &links)
	assert.Contains(t, links.Catalog, arxivBibcode)
	assert.Contains(t, links.PDFArxiv, "EPRINT_PDF")
	assert.Contains(t, links.PDFPublisher, "PUB_PDF")

	// No bibcode: all fields absent, still a 200.
	w = doGet(t, router, "/documents/2/links")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "{}", w.Body.String())

	assert.Equal(t, http.StatusNotFound, doGet(t, router, "/documents/999/links").Code)
}

func TestDownloadPDF(t *testing.T) {
	router, _ := newTestServer(t)

	w := doGet(t, router, "/documents/1/pdf")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "arxiv", w.Header().Get("X-PDF-Source"))
	assert.Contains(t, w.Header().Get("X-PDF-URL"), arxivBibcode)
	assert.Contains(t, w.Header().Get("Content-Disposition"), arxivBibcode+".pdf")
	assert.Equal(t, testPDFBody, w.Body.String())
}

func TestDownloadPDFNoBibcode(t *testing.T) {
	router, gateway := newTestServer(t)

	w := doGet(t, router, "/documents/2/pdf")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, gateway.hitCount(), "no network call may happen without a bibcode")
}

func TestDownloadPDFAllMirrorsFail(t *testing.T) {
	router, gateway := newTestServer(t)

	w := doGet(t, router, "/documents/3/pdf")
	require.Equal(t, http.StatusBadGateway, w.Code)
	var body struct {
		Error     string   `json:"error"`
		Attempted []string `json:"attempted_sources"`
	}
	decodeJSON(t, w, &body)
	assert.Equal(t, []string{"arxiv", "publisher"}, body.Attempted)
	assert.Equal(t, 2, gateway.hitCount(), "each mirror is attempted exactly once")
}

func TestDownloadPDFSourceSelection(t *testing.T) {
	router, gateway := newTestServer(t)

	// Publisher-only preference must fail without ever trying arXiv.
	w := doGet(t, router, "/documents/1/pdf?source=publisher")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, 1, gateway.hitCount())
	assert.Contains(t, gateway.hits[0], "PUB_PDF")

	assert.Equal(t, http.StatusBadRequest, doGet(t, router, "/documents/1/pdf?source=scihub").Code)
	assert.Equal(t, http.StatusNotFound, doGet(t, router, "/documents/999/pdf").Code)
}

func TestStatsEndpoint(t *testing.T) {
	router, _ := newTestServer(t)

	w := doGet(t, router, "/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.CollectionStats
	decodeJSON(t, w, &stats)
	assert.Equal(t, int64(3), stats.TotalDocuments)
	require.NotNil(t, stats.YearRange)
	assert.Equal(t, 2012, stats.YearRange.Min)
	assert.Equal(t, 2016, stats.YearRange.Max)
	assert.Equal(t, int64(42), stats.TotalCitations)
}
