package creation

import (
	"regexp"
	"strings"

	"github.com/hpungsan/muse/internal/errors"
)

// emailRegex is the basic local@domain.tld shape accepted by the details form.
var emailRegex = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Profile holds the details collected by the first wizard step.
type Profile struct {
	Name        string `json:"name"`
	Designation string `json:"designation"`
	Company     string `json:"company"`
	Email       string `json:"email"`
}

// Normalize returns a copy with surrounding whitespace trimmed from every field.
func (p Profile) Normalize() Profile {
	return Profile{
		Name:        strings.TrimSpace(p.Name),
		Designation: strings.TrimSpace(p.Designation),
		Company:     strings.TrimSpace(p.Company),
		Email:       strings.TrimSpace(p.Email),
	}
}

// FieldErrors returns field-level messages keyed by JSON field name.
// An empty map means the profile is valid.
func (p Profile) FieldErrors() map[string]string {
	p = p.Normalize()
	fields := make(map[string]string)

	if p.Name == "" {
		fields["name"] = "Name is required"
	}
	if p.Designation == "" {
		fields["designation"] = "Designation is required"
	}
	if p.Company == "" {
		fields["company"] = "Company is required"
	}
	if p.Email == "" {
		fields["email"] = "Email is required"
	} else if !emailRegex.MatchString(p.Email) {
		fields["email"] = "Please enter a valid email address"
	}

	return fields
}

// Validate returns a VALIDATION_ERROR listing every invalid field, or nil.
func (p Profile) Validate() error {
	if fields := p.FieldErrors(); len(fields) > 0 {
		return errors.NewValidation(fields)
	}
	return nil
}
