package generate

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/muse/internal/creation"
)

func TestDemoProvider_Deterministic(t *testing.T) {
	req := TextRequest{Subject: Subject{Name: "Ada", Designation: "Engineer", Company: "Acme"}}
	a := NewDemoProvider(DemoOptions{Seed: 7})
	b := NewDemoProvider(DemoOptions{Seed: 7})

	for i := 0; i < 5; i++ {
		pa, err := a.GenerateText(context.Background(), req)
		if err != nil {
			t.Fatalf("GenerateText() error = %v", err)
		}
		pb, _ := b.GenerateText(context.Background(), req)
		if pa != pb {
			t.Fatalf("call %d differs for the same seed:\n%s\n---\n%s", i, pa, pb)
		}
		if lines := creation.PoemLines(pa); len(lines) != 4 {
			t.Errorf("poem has %d lines, want 4", len(lines))
		}
		if !strings.Contains(pa, "Ada") {
			t.Errorf("poem does not mention the subject: %s", pa)
		}
	}
}

func TestDemoProvider_Image(t *testing.T) {
	p := NewDemoProvider(DemoOptions{})

	ref, err := p.GenerateImage(context.Background(), ImageRequest{
		Style:   creation.StyleRockstar,
		Main:    testImage,
		Subject: Subject{Name: "Ada Lovelace"},
	})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}

	const prefix = "data:image/svg+xml;base64,"
	if !strings.HasPrefix(ref, prefix) {
		t.Fatalf("ref = %q, want svg data URI", ref)
	}
	svg, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ref, prefix))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, want := range []string{"AL", "Ada Lovelace", "Rockstar portrait", demoPalettes[creation.StyleRockstar][0]} {
		if !strings.Contains(string(svg), want) {
			t.Errorf("svg missing %q", want)
		}
	}
}

func TestDemoProvider_HonorsContext(t *testing.T) {
	p := NewDemoProvider(DemoOptions{BaseDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.GenerateText(ctx, TextRequest{}); err != context.Canceled {
		t.Errorf("GenerateText() error = %v, want context.Canceled", err)
	}
	if _, err := p.GenerateImage(ctx, ImageRequest{Main: testImage}); err != context.Canceled {
		t.Errorf("GenerateImage() error = %v, want context.Canceled", err)
	}
}

func TestDemoProvider_DelayScalesWithReferences(t *testing.T) {
	p := NewDemoProvider(DemoOptions{PerImageDelay: 30 * time.Millisecond})

	start := time.Now()
	if _, err := p.GenerateImage(context.Background(), ImageRequest{
		Main: testImage, Auxiliary: []creation.Image{testImage, testImage},
	}); err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 90ms for 3 references", elapsed)
	}
}

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"Ada Lovelace":          "AL",
		"ada":                   "A",
		"Grace Brewster Hopper": "GB",
		"  ":                    "?",
		"Émile Zola":            "ÉZ",
		"Øyvind élan Strand":    "ØÉ",
	}
	for in, want := range tests {
		if got := initials(in); got != want {
			t.Errorf("initials(%q) = %q, want %q", in, got, want)
		}
	}
}
