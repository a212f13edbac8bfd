package creation

// ExportRecord represents a result record in JSONL export format.
// It is used for parsing export files during import.
type ExportRecord struct {
	// Header detection field - true only for header line
	MuseExport bool `json:"_muse_export,omitempty"`

	// Header fields (only present in header line)
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	// Result fields
	ID             string `json:"id"`
	Poem           string `json:"poem"`
	PortraitURL    string `json:"portrait_url"`
	PortraitStyle  string `json:"portrait_style"`
	Name           string `json:"name"`
	Designation    string `json:"designation"`
	Company        string `json:"company"`
	ReferenceCount int    `json:"reference_count"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// ToResult converts an ExportRecord to a Result. Unknown styles fall back to the default.
func (r *ExportRecord) ToResult() *Result {
	return &Result{
		ID:             r.ID,
		Poem:           r.Poem,
		PortraitURL:    r.PortraitURL,
		PortraitStyle:  ParseStyle(r.PortraitStyle),
		Name:           r.Name,
		Designation:    r.Designation,
		Company:        r.Company,
		ReferenceCount: r.ReferenceCount,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// ResultToExportRecord converts a Result to an ExportRecord for export.
func ResultToExportRecord(r *Result) *ExportRecord {
	return &ExportRecord{
		ID:             r.ID,
		Poem:           r.Poem,
		PortraitURL:    r.PortraitURL,
		PortraitStyle:  string(r.PortraitStyle),
		Name:           r.Name,
		Designation:    r.Designation,
		Company:        r.Company,
		ReferenceCount: r.ReferenceCount,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
