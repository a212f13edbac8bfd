package generate

import (
	"fmt"
	"strings"

	"github.com/hpungsan/muse/internal/creation"
)

// PoemSystemPrompt frames the text model as a poet.
const PoemSystemPrompt = "You are a professional poet who writes personalized, inspirational poems."

// PoemMaxTokens caps the poem completion.
const PoemMaxTokens = 300

// styleDirections narrows the portrait request for each style.
var styleDirections = map[creation.Style]string{
	creation.StyleProfessional: "Use a clean corporate headshot look with soft studio lighting.",
	creation.StyleLinkedIn:     "Compose it as a polished LinkedIn profile photo: head and shoulders, friendly expression, business attire.",
	creation.StyleAvatar:       "Render it as a stylized 3D avatar with smooth shading and expressive features.",
	creation.StyleMarvel:       "Render it as a comic-book superhero in bold Marvel-style inks and dynamic colors.",
	creation.StyleRockstar:     "Show them as a rockstar on stage with dramatic concert lighting.",
	creation.StyleGTA:          "Render it in the Grand Theft Auto loading-screen illustration style with saturated colors and strong outlines.",
}

// PoemPrompt is the user message for a 4-line personalized poem.
func PoemPrompt(s Subject) string {
	return fmt.Sprintf(
		"Write a beautiful, inspiring 4-line poem for %s, who works as a %s at %s. "+
			"The poem should be uplifting and professional. Limit to exactly 4 lines, each line being concise.",
		s.Name, s.Designation, s.Company)
}

// PortraitPrompt describes the portrait for s in the given style, noting how
// many auxiliary references accompany the main one.
func PortraitPrompt(s Subject, style creation.Style, auxiliary int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a professional, animated-style portrait for %s who works as a %s. ", s.Name, s.Designation)
	b.WriteString("The portrait should be a high-quality, artistic representation that clearly shows their face and reflects their professional role. ")
	b.WriteString("Make the portrait vibrant and detailed with a neutral background suitable for professional use. ")
	b.WriteString("The face should be front-facing and clearly visible, matching the appearance in the reference image.")

	if d, ok := styleDirections[style]; ok {
		b.WriteString(" ")
		b.WriteString(d)
	}
	if auxiliary > 0 {
		fmt.Fprintf(&b, " %d additional reference photo(s) of the same person are attached to improve likeness.", auxiliary)
	}
	return b.String()
}
