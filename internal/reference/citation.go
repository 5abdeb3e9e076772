// Package reference defines the core domain types for extracted citations.
package reference

// MetadataExtractionMethod is the provenance key set on citations that a
// fallback strategy contributed.
const MetadataExtractionMethod = "extraction_method"

// Citation is one bibliography entry recovered from a document.
// Optional string fields use the empty string for "absent"; Year is 0 when
// no plausible year was found.
type Citation struct {
	RawText string `json:"raw_text"` // Candidate text the fields were parsed from

	// Core fields
	Authors             []string `json:"authors,omitempty"`
	FirstAuthorLastName string   `json:"first_author_last_name,omitempty"`
	Title               string   `json:"title,omitempty"`
	Year                int      `json:"year,omitempty"`

	// Publication details
	Journal string `json:"journal,omitempty"`
	Volume  string `json:"volume,omitempty"`
	Issue   string `json:"issue,omitempty"`
	Pages   string `json:"pages,omitempty"`

	// Identifiers
	DOI     string `json:"doi,omitempty"`
	PMID    string `json:"pmid,omitempty"`
	ArXivID string `json:"arxiv_id,omitempty"`
	URL     string `json:"url,omitempty"`

	Publisher       string `json:"publisher,omitempty"`
	PublicationType string `json:"publication_type,omitempty"` // journal, conference, book, thesis, preprint, other

	// Provenance and strategy-specific extras
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Method returns the extraction method recorded in the provenance map, or
// the empty string for citations produced by the primary path.
func (c Citation) Method() string {
	return c.Metadata[MetadataExtractionMethod]
}

// WithMetadata returns a copy of c with key set to value. The receiver's map
// is never mutated.
func (c Citation) WithMetadata(key, value string) Citation {
	md := make(map[string]string, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		md[k] = v
	}
	md[key] = value
	c.Metadata = md
	return c
}

// WithMethod tags the citation with the strategy that produced it.
func (c Citation) WithMethod(method string) Citation {
	return c.WithMetadata(MetadataExtractionMethod, method)
}

// Outcome is the result of one extraction call.
type Outcome struct {
	Source         string     `json:"source"`
	Citations      []Citation `json:"citations"`
	TotalCitations int        `json:"total_citations"`
	Errors         []string   `json:"errors"`
}

// NewOutcome returns an empty outcome for source with non-nil slices so it
// encodes as [] rather than null.
func NewOutcome(source string) *Outcome {
	return &Outcome{
		Source:    source,
		Citations: []Citation{},
		Errors:    []string{},
	}
}

// AddError records a diagnostic message.
func (o *Outcome) AddError(msg string) {
	o.Errors = append(o.Errors, msg)
}

// SetCitations replaces the citation list and keeps TotalCitations in sync.
func (o *Outcome) SetCitations(cs []Citation) {
	if cs == nil {
		cs = []Citation{}
	}
	o.Citations = cs
	o.TotalCitations = len(cs)
}
