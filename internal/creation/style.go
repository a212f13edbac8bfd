package creation

import "strings"

// Style is the closed set of portrait styles.
type Style string

const (
	StyleProfessional Style = "professional"
	StyleLinkedIn     Style = "linkedin"
	StyleAvatar       Style = "avatar"
	StyleMarvel       Style = "marvel"
	StyleRockstar     Style = "rockstar"
	StyleGTA          Style = "gta"
)

// DefaultStyle is used when no style, or an unknown one, is requested.
const DefaultStyle = StyleProfessional

// styleLabels holds display names in presentation order.
var styleLabels = []struct {
	style Style
	label string
}{
	{StyleProfessional, "Professional"},
	{StyleLinkedIn, "LinkedIn"},
	{StyleAvatar, "Avatar"},
	{StyleMarvel, "Marvel"},
	{StyleRockstar, "Rockstar"},
	{StyleGTA, "GTA"},
}

// AllStyles returns every style in presentation order.
func AllStyles() []Style {
	out := make([]Style, len(styleLabels))
	for i, s := range styleLabels {
		out[i] = s.style
	}
	return out
}

// Valid reports whether s is one of the known styles.
func (s Style) Valid() bool {
	for _, l := range styleLabels {
		if l.style == s {
			return true
		}
	}
	return false
}

// Label returns the display name of the style.
func (s Style) Label() string {
	for _, l := range styleLabels {
		if l.style == s {
			return l.label
		}
	}
	return string(s)
}

// ParseStyle maps user input to a Style, case-insensitively.
// Empty or unknown values fall back to DefaultStyle.
func ParseStyle(s string) Style {
	st := Style(strings.ToLower(strings.TrimSpace(s)))
	if st.Valid() {
		return st
	}
	return DefaultStyle
}
