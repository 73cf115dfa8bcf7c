package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sdo-docs/config"
	"sdo-docs/providers/ads"
	"sdo-docs/services"
	"sdo-docs/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	apiTitle   = "SDO Documents API"
	apiVersion = "1.0.0"
)

var (
	pdfDownloadsCounter *prometheus.CounterVec
	documentsGauge      prometheus.Gauge
	minYearGauge        prometheus.Gauge
	maxYearGauge        prometheus.Gauge
)

func init() {
	pdfDownloadsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdf_downloads_total",
			Help: "PDF download attempts by resolved source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	documentsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_documents_total",
		Help: "Number of documents in the store.",
	})
	minYearGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_year_min",
		Help: "Earliest publication year in the store.",
	})
	maxYearGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_year_max",
		Help: "Latest publication year in the store.",
	})
	prometheus.MustRegister(pdfDownloadsCounter, documentsGauge, minYearGauge, maxYearGauge)
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}
	if cfg.Debug {
		if dev, err := zap.NewDevelopment(); err == nil {
			logging = dev
		}
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := storage.NewReadOnlyDB(cfg)
	if err != nil {
		logging.Fatal("Failed to open document store", zap.Error(err))
	}
	logging.Info("Document store opened", zap.String("path", cfg.DatabasePath))

	catalog := services.NewCatalogService(cfg, db, logging)
	fetcher := ads.NewFetcher(cfg, logging)

	router := setupRouter(catalog, fetcher, logging)

	refreshStatsGauges(catalog, logging)
	cronScheduler := cron.New()
	if _, err := cronScheduler.AddFunc(cfg.StatsCronSchedule, func() {
		refreshStatsGauges(catalog, logging)
	}); err != nil {
		logging.Fatal("Invalid stats cron schedule", zap.String("schedule", cfg.StatsCronSchedule), zap.Error(err))
	}
	cronScheduler.Start()

	addr := cfg.APIHost + ":" + cfg.APIPort
	logging.Info("Starting server", zap.String("addr", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Wide enough for a slow PDF relay from the gateway.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupRouter(catalog *services.CatalogService, fetcher *ads.Fetcher, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupRootRoutes(router)
	setupDocumentRoutes(router, catalog, fetcher, log)
	setupStatsRoutes(router, catalog, log)

	return router
}

func setupRootRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": apiTitle,
			"version": apiVersion,
			"docs":    "/documents",
		})
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func setupDocumentRoutes(router *gin.Engine, catalog *services.CatalogService, fetcher *ads.Fetcher, log *zap.Logger) {
	rg := router.Group("/documents")

	rg.GET("", func(c *gin.Context) {
		skip, limit, ok := pageParams(c, catalog.Config.DefaultPageSize)
		if !ok {
			return
		}
		var year *int
		if raw := c.Query("year"); raw != "" {
			y, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer"})
				return
			}
			year = &y
		}

		docs, err := catalog.ListDocuments(skip, limit, year)
		if err != nil {
			writeCatalogError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, docs)
	})

	rg.GET("/search", func(c *gin.Context) {
		q := c.Query("q")
		skip, limit, ok := pageParams(c, catalog.Config.DefaultPageSize)
		if !ok {
			return
		}

		docs, err := catalog.SearchDocuments(q, skip, limit)
		if err != nil {
			writeCatalogError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, docs)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, ok := documentID(c)
		if !ok {
			return
		}
		doc, err := catalog.GetDocument(id)
		if err != nil {
			writeCatalogError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	rg.GET("/:id/links", func(c *gin.Context) {
		id, ok := documentID(c)
		if !ok {
			return
		}
		doc, err := catalog.GetDocument(id)
		if err != nil {
			writeCatalogError(c, log, err)
			return
		}
		bibcode := ""
		if doc.Bibcode != nil {
			bibcode = *doc.Bibcode
		}
		c.JSON(http.StatusOK, ads.Links(catalog.Config.ADSBaseURL, bibcode))
	})

	rg.GET("/:id/pdf", func(c *gin.Context) {
		id, ok := documentID(c)
		if !ok {
			return
		}
		doc, err := catalog.GetDocument(id)
		if err != nil {
			writeCatalogError(c, log, err)
			return
		}

		source := ads.Source(c.DefaultQuery("source", string(ads.SourceAuto)))
		bibcode := ""
		if doc.Bibcode != nil {
			bibcode = *doc.Bibcode
		}

		res, err := fetcher.FetchPDF(c.Request.Context(), bibcode, source)
		if err != nil {
			writePDFError(c, log, id, err)
			return
		}
		defer res.Body.Close()
		pdfDownloadsCounter.WithLabelValues(string(res.Source), "success").Inc()

		extraHeaders := map[string]string{
			"X-PDF-Source":        string(res.Source),
			"X-PDF-URL":           res.URL,
			"Content-Disposition": fmt.Sprintf(`attachment; filename="%s.pdf"`, bibcode),
		}
		// Relays the upstream body chunk by chunk; an upstream failure
		// mid-body aborts the response rather than faking success.
		c.DataFromReader(http.StatusOK, res.ContentLength, res.ContentType, res.Body, extraHeaders)
	})
}

func setupStatsRoutes(router *gin.Engine, catalog *services.CatalogService, log *zap.Logger) {
	router.GET("/stats", func(c *gin.Context) {
		stats, err := catalog.Stats()
		if err != nil {
			writeCatalogError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	})
}

// pageParams parses skip/limit query parameters, applying the default page
// size. Range validation happens in the service.
func pageParams(c *gin.Context, defaultLimit int) (int, int, bool) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "skip must be an integer"})
		return 0, 0, false
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return 0, 0, false
	}
	return skip, limit, true
}

func documentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return 0, false
	}
	return id, true
}

func writeCatalogError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
	case errors.Is(err, services.ErrInvalidPage), errors.Is(err, services.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error("Catalog request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
	}
}

func writePDFError(c *gin.Context, log *zap.Logger, id int64, err error) {
	var unavailable *ads.UnavailableError
	switch {
	case errors.Is(err, ads.ErrNoBibcode):
		pdfDownloadsCounter.WithLabelValues("none", "no_bibcode").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "PDF unavailable: document has no bibcode"})
	case errors.Is(err, ads.ErrBadSource):
		c.JSON(http.StatusBadRequest, gin.H{"error": "source must be one of: auto, arxiv, publisher"})
	case errors.As(err, &unavailable):
		attempted := make([]string, 0, len(unavailable.Attempted))
		for _, s := range unavailable.Attempted {
			attempted = append(attempted, string(s))
		}
		pdfDownloadsCounter.WithLabelValues(strings.Join(attempted, ","), "unavailable").Inc()
		log.Warn("PDF unavailable", zap.Int64("id", id), zap.Strings("attempted", attempted))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":             "PDF unavailable from all sources",
			"attempted_sources": attempted,
		})
	default:
		log.Error("PDF fetch failed", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pdf fetch failed"})
	}
}

func refreshStatsGauges(catalog *services.CatalogService, log *zap.Logger) {
	stats, err := catalog.Stats()
	if err != nil {
		log.Error("Stats gauge refresh failed", zap.Error(err))
		return
	}
	documentsGauge.Set(float64(stats.TotalDocuments))
	if stats.YearRange != nil {
		minYearGauge.Set(float64(stats.YearRange.Min))
		maxYearGauge.Set(float64(stats.YearRange.Max))
	}
}
