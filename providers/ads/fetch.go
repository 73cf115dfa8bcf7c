package ads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"sdo-docs/config"

	"go.uber.org/zap"
)

// CustomTransport adds browser-like headers to every request. The link
// gateway rejects requests without a realistic User-Agent.
type CustomTransport struct {
	Transport http.RoundTripper
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/pdf,*/*")
	return t.Transport.RoundTrip(req)
}

// httpClient is shared by all fetches. Redirects are followed by default;
// the gateway issues at least one hop to the actual PDF host.
var httpClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &CustomTransport{
		Transport: http.DefaultTransport,
	},
}

// Fetcher retrieves PDF payloads through the ADS link gateway.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher creates a new gateway fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// FetchPDF tries the candidate mirrors for bibcode in fallback order and
// returns the first streamable PDF response. Each candidate is attempted
// exactly once; there are no retries. The request is bound to ctx so a
// disconnected caller abandons the upstream transfer.
func (f *Fetcher) FetchPDF(ctx context.Context, bibcode string, pref Source) (*PDFResult, error) {
	if strings.TrimSpace(bibcode) == "" {
		return nil, ErrNoBibcode
	}

	mirrors, err := Mirrors(f.Config.ADSBaseURL, bibcode, pref)
	if err != nil {
		return nil, err
	}

	log := f.Logger.With(zap.String("bibcode", bibcode), zap.String("preference", string(pref)))

	attempted := make([]Source, 0, len(mirrors))
	for _, m := range mirrors {
		attempted = append(attempted, m.Source)

		res, err := f.tryMirror(ctx, m)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
				log.Warn("Mirror timed out", zap.String("source", string(m.Source)), zap.String("url", m.URL))
			} else {
				log.Warn("Mirror failed", zap.String("source", string(m.Source)), zap.String("url", m.URL), zap.Error(err))
			}
			continue
		}

		log.Info("PDF found",
			zap.String("source", string(res.Source)),
			zap.String("resolved_url", res.URL),
			zap.Int64("content_length", res.ContentLength))
		return res, nil
	}

	return nil, &UnavailableError{Bibcode: bibcode, Attempted: attempted}
}

// tryMirror issues a single GET and classifies the response. A 200 with an
// HTML body is the gateway's "not available" page and counts as a failure,
// so the status code alone is never trusted.
func (f *Fetcher) tryMirror(ctx context.Context, m Mirror) (*PDFResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isPDFContentType(contentType) {
		resp.Body.Close()
		return nil, fmt.Errorf("not a pdf payload (content-type %q)", contentType)
	}

	return &PDFResult{
		Source:        m.Source,
		URL:           resp.Request.URL.String(),
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
	}, nil
}

func isPDFContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "pdf") || strings.Contains(ct, "octet-stream")
}
