package ads

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Source names a PDF mirror behind the ADS link gateway.
type Source string

const (
	// SourceAuto tries arXiv first, then the publisher. arXiv goes first
	// because it serves without authentication far more often.
	SourceAuto      Source = "auto"
	SourceArxiv     Source = "arxiv"
	SourcePublisher Source = "publisher"
)

// LinkSet holds the external URLs derivable from a bibcode. Fields are
// empty when no bibcode is available.
type LinkSet struct {
	Catalog      string `json:"catalog,omitempty"`
	PDFArxiv     string `json:"pdf_arxiv,omitempty"`
	PDFPublisher string `json:"pdf_publisher,omitempty"`
	Export       string `json:"export,omitempty"`
	Related      string `json:"related,omitempty"`
}

// Mirror is one candidate download location in fallback order.
type Mirror struct {
	Source Source
	URL    string
}

// PDFResult carries a successful mirror response. Body is the unconsumed
// upstream stream; the caller must close it.
type PDFResult struct {
	Source        Source
	URL           string // final URL after redirects
	ContentType   string
	ContentLength int64
	Body          io.ReadCloser
}

// ErrNoBibcode means the document lacks the key needed to derive any
// gateway URL. No network call is made in this case.
var ErrNoBibcode = errors.New("document has no bibcode")

// ErrBadSource means the requested source preference is not one of
// auto, arxiv, publisher.
var ErrBadSource = errors.New("unknown pdf source")

// UnavailableError reports that every candidate mirror failed. Individual
// failures are logged, not surfaced; callers only see the aggregate.
type UnavailableError struct {
	Bibcode   string
	Attempted []Source
}

func (e *UnavailableError) Error() string {
	names := make([]string, len(e.Attempted))
	for i, s := range e.Attempted {
		names[i] = string(s)
	}
	return fmt.Sprintf("no pdf available for %s (tried: %s)", e.Bibcode, strings.Join(names, ", "))
}
