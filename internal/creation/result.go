package creation

// Result is one generated poem + portrait pair.
// ID is minted once and stays stable across regenerations.
type Result struct {
	// ID is a ULID that uniquely identifies this result
	ID string `json:"id"`

	// Poem is the generated 4-line poem
	Poem string `json:"poem"`

	// PortraitURL references the generated portrait (https URL or data URI)
	PortraitURL string `json:"portrait_url"`

	// PortraitStyle is the style the current portrait was generated with
	PortraitStyle Style `json:"portrait_style"`

	// Name, Designation and Company identify who the result was made for
	Name        string `json:"name"`
	Designation string `json:"designation"`
	Company     string `json:"company"`

	// ReferenceCount is how many reference images informed the portrait
	ReferenceCount int `json:"reference_count"`

	// CreatedAt is the Unix timestamp of first creation; regeneration does not change it
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix timestamp of the last regeneration (equals CreatedAt until then)
	UpdatedAt int64 `json:"updated_at"`
}

// Patch describes a regeneration. Nil fields are left unchanged.
type Patch struct {
	Poem          *string
	PortraitURL   *string
	PortraitStyle *Style
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Poem == nil && p.PortraitURL == nil && p.PortraitStyle == nil
}

// Apply returns a copy of r with the patch applied and UpdatedAt set to now.
// ID, CreatedAt and the subject fields are never touched.
func (p Patch) Apply(r Result, now int64) Result {
	if p.Poem != nil {
		r.Poem = *p.Poem
	}
	if p.PortraitURL != nil {
		r.PortraitURL = *p.PortraitURL
	}
	if p.PortraitStyle != nil {
		r.PortraitStyle = *p.PortraitStyle
	}
	r.UpdatedAt = now
	return r
}

// Summary is a Result without the (possibly large) portrait payload.
// Used for browse operations (list, latest) to reduce data transfer.
type Summary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Designation    string `json:"designation"`
	Company        string `json:"company"`
	PortraitStyle  Style  `json:"portrait_style"`
	PoemPreview    string `json:"poem_preview"`
	ReferenceCount int    `json:"reference_count"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// ToSummary strips the portrait payload and shortens the poem to its first line.
func (r *Result) ToSummary() Summary {
	return Summary{
		ID:             r.ID,
		Name:           r.Name,
		Designation:    r.Designation,
		Company:        r.Company,
		PortraitStyle:  r.PortraitStyle,
		PoemPreview:    FirstLine(r.Poem),
		ReferenceCount: r.ReferenceCount,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
