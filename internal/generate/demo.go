package generate

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hpungsan/muse/internal/creation"
)

// DemoOptions configures a DemoProvider.
type DemoOptions struct {
	BaseDelay     time.Duration
	PerImageDelay time.Duration
	Seed          uint64
}

// DemoProvider produces canned output without any network access. Output is
// a pure function of the seed and the call sequence.
type DemoProvider struct {
	opts DemoOptions

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDemoProvider returns a DemoProvider for opts.
func NewDemoProvider(opts DemoOptions) *DemoProvider {
	return &DemoProvider{
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
}

func (p *DemoProvider) Name() string { return "demo" }

var demoPoems = [][4]string{
	{
		"In %[3]s's halls where ideas take flight,",
		"%[1]s shapes each day with steady light.",
		"A %[2]s whose craft is clear and true,",
		"Tomorrow's work begins anew.",
	},
	{
		"%[1]s, with purpose bold and bright,",
		"Turns every challenge into light.",
		"As %[2]s at %[3]s you stand,",
		"With vision strong and steady hand.",
	},
	{
		"Through %[3]s's doors the morning streams,",
		"Where %[1]s builds on daring dreams.",
		"A %[2]s guided by the stars,",
		"Who knows no limits, sees no bars.",
	},
	{
		"Each challenge met, each summit climbed,",
		"%[1]s keeps pace with changing time.",
		"The %[2]s %[3]s counts upon,",
		"A spark that carries teams along.",
	},
}

// demoPalettes colors the placeholder portrait per style.
var demoPalettes = map[creation.Style][2]string{
	creation.StyleProfessional: {"#1f3a5f", "#e8eef5"},
	creation.StyleLinkedIn:     {"#0a66c2", "#ffffff"},
	creation.StyleAvatar:       {"#6a4c93", "#f1e9ff"},
	creation.StyleMarvel:       {"#b31217", "#ffd23f"},
	creation.StyleRockstar:     {"#111111", "#ff2e63"},
	creation.StyleGTA:          {"#f28c28", "#1b1b1b"},
}

// GenerateText returns one of the canned 4-line poems for the subject.
func (p *DemoProvider) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if err := sleepCtx(ctx, p.opts.BaseDelay); err != nil {
		return "", err
	}

	tmpl := demoPoems[p.intN(len(demoPoems))]
	s := req.Subject
	lines := make([]string, len(tmpl))
	for i, line := range tmpl {
		lines[i] = fmt.Sprintf(line, s.Name, s.Designation, s.Company)
	}
	return strings.Join(lines, "\n"), nil
}

// GenerateImage returns an SVG placeholder portrait as a data URI. Each
// reference image adds PerImageDelay to the simulated latency.
func (p *DemoProvider) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	delay := p.opts.BaseDelay + time.Duration(req.ReferenceCount())*p.opts.PerImageDelay
	if err := sleepCtx(ctx, delay); err != nil {
		return "", err
	}

	style := req.Style
	if !style.Valid() {
		style = creation.DefaultStyle
	}
	palette := demoPalettes[style]
	variant := p.intN(4)

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="512" height="512" viewBox="0 0 512 512">`+
		`<rect width="512" height="512" fill="%s"/>`+
		`<circle cx="256" cy="%d" r="120" fill="%s"/>`+
		`<text x="256" y="250" font-family="sans-serif" font-size="96" text-anchor="middle" fill="%s">%s</text>`+
		`<text x="256" y="440" font-family="sans-serif" font-size="28" text-anchor="middle" fill="%s">%s</text>`+
		`<text x="256" y="480" font-family="sans-serif" font-size="20" text-anchor="middle" fill="%s">%s</text>`+
		`</svg>`,
		palette[0],
		200+variant*8, palette[1],
		palette[0], html.EscapeString(initials(req.Subject.Name)),
		palette[1], html.EscapeString(req.Subject.Name),
		palette[1], html.EscapeString(style.Label()+" portrait"),
	)
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg)), nil
}

func (p *DemoProvider) intN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

func initials(name string) string {
	var b strings.Builder
	n := 0
	for _, f := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(f)
		b.WriteRune(unicode.ToUpper(r))
		if n++; n == 2 {
			break
		}
	}
	if n == 0 {
		return "?"
	}
	return b.String()
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
