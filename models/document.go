package models

// Document is one bibliographic record of the SDO collection. The store is
// populated once by cmd/ingest and treated as immutable afterwards; ids are
// assigned by the ADS, not by this system.
type Document struct {
	ID       int64  `json:"id" gorm:"primaryKey"`
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty" gorm:"type:text"`
	Authors  string `json:"authors,omitempty"`

	// "YYYY-MM-DD" or "YYYY-MM-00" when the day is unknown. Only the
	// leading year is ever interpreted.
	PublicationDate string `json:"publication_date" gorm:"index"`

	DOI           *string `json:"doi" gorm:"column:doi"`
	Bibcode       *string `json:"bibcode"`
	CitationCount *int    `json:"citation_count"`
}

// TableName sets the explicit table name for GORM.
func (Document) TableName() string {
	return "documents"
}

// PublicDocument is the response shape: the stored record plus the ADS
// abstract-page URL, computed at response time and null without a bibcode.
type PublicDocument struct {
	Document
	ADSURL *string `json:"ads_url"`
}
