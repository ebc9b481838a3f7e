package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	sig, err := c.Lookup("Signature-Resizer")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !sig.Rule().IsSignature {
		t.Fatal("signature resizer must be a signature rule")
	}

	us, err := c.Lookup("us-passport")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if w, h := us.Rule().TargetPixels(); w != 602 || h != 602 {
		t.Fatalf("us passport pixels = %dx%d", w, h)
	}

	if _, err := c.Lookup("atlantis-passport"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("err = %v, want ErrRuleNotFound", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - name: "SSC CGL - India"
    width_px: 413
    height_px: 531
    bg_color: lightblue
  - slug: exam-signature
    name: Exam Signature
    width_mm: 50
    height_mm: 20
    signature: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	exam, err := c.Lookup("ssc-cgl-india")
	if err != nil {
		t.Fatalf("lookup derived slug: %v", err)
	}
	if exam.WidthMM != 34 || exam.HeightMM != 44 {
		t.Fatalf("mm derived from pixels = %vx%v", exam.WidthMM, exam.HeightMM)
	}
	if exam.Background != "lightblue" {
		t.Fatalf("background = %q", exam.Background)
	}
	sig, err := c.Lookup("exam-signature")
	if err != nil || !sig.Signature {
		t.Fatalf("signature entry = %+v, %v", sig, err)
	}
	if len(c.Entries()) != 2 {
		t.Fatalf("entries = %d", len(c.Entries()))
	}
}

func TestLoadRejectsDuplicates(t *testing.T) {
	_, err := New([]Entry{{Slug: "a"}, {Name: "A"}})
	if err == nil {
		t.Fatal("expected duplicate slug error")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Entries()) != len(builtinEntries()) {
		t.Fatalf("unexpected entry count %d", len(c.Entries()))
	}
}

func TestNormalizeFallbacks(t *testing.T) {
	e := normalize(Entry{Name: "Mystery Card"})
	if e.Slug != "mystery-card" || e.WidthMM != 35 || e.HeightMM != 45 || e.Background != "white" {
		t.Fatalf("normalized = %+v", e)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"US Passport":         "us-passport",
		"  SSC CGL - India  ": "ssc-cgl-india",
		"Visa (UK) BRP!":      "visa-uk-brp",
		"":                    "",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
