package ads

import "net/url"

// Gateway path suffixes on the ADS UI host.
const (
	arxivPDFSuffix     = "EPRINT_PDF"
	publisherPDFSuffix = "PUB_PDF"
	exportSuffix       = "exportcitation"
	relatedSuffix      = "citations"
)

// Links derives the full candidate link set for a bibcode. It is pure: no
// network, no validation that the targets resolve (that is the fetcher's
// job), and the same inputs always yield the same URLs. An empty bibcode
// yields the zero LinkSet.
func Links(base, bibcode string) LinkSet {
	if bibcode == "" {
		return LinkSet{}
	}
	b := url.PathEscape(bibcode)
	return LinkSet{
		Catalog:      base + "/abs/" + b + "/abstract",
		PDFArxiv:     base + "/link_gateway/" + b + "/" + arxivPDFSuffix,
		PDFPublisher: base + "/link_gateway/" + b + "/" + publisherPDFSuffix,
		Export:       base + "/abs/" + b + "/" + exportSuffix,
		Related:      base + "/abs/" + b + "/" + relatedSuffix,
	}
}

// Mirrors returns the download candidates for a bibcode in the order they
// must be tried. The order is a contract: it decides which source gets
// reported when more than one would succeed.
func Mirrors(base, bibcode string, pref Source) ([]Mirror, error) {
	links := Links(base, bibcode)
	switch pref {
	case SourceArxiv:
		return []Mirror{{SourceArxiv, links.PDFArxiv}}, nil
	case SourcePublisher:
		return []Mirror{{SourcePublisher, links.PDFPublisher}}, nil
	case SourceAuto:
		return []Mirror{
			{SourceArxiv, links.PDFArxiv},
			{SourcePublisher, links.PDFPublisher},
		}, nil
	default:
		return nil, ErrBadSource
	}
}
