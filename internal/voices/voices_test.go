package voices

import (
	"strings"
	"testing"
)

func TestLanguageCatalog(t *testing.T) {
	if !IsLanguage("a") || !IsLanguage("z") {
		t.Error("known language codes rejected")
	}
	if IsLanguage("q") || IsLanguage("") || IsLanguage("ab") {
		t.Error("unknown language codes accepted")
	}
	if got := LanguageName("b"); got != "British English" {
		t.Errorf("unexpected language name %q", got)
	}
	codes := LanguageCodes()
	if len(codes) != 9 {
		t.Fatalf("expected 9 language codes, got %d", len(codes))
	}
}

func TestVoiceCatalogConsistency(t *testing.T) {
	if !IsVoice(DefaultVoice) {
		t.Fatalf("default voice %q missing from catalog", DefaultVoice)
	}
	for _, v := range All() {
		if len(v) < 3 || v[2] != '_' {
			t.Errorf("voice %q does not follow the <lang><gender>_<name> form", v)
		}
		if !IsLanguage(v[:1]) {
			t.Errorf("voice %q references unknown language %q", v, v[:1])
		}
	}
}

func TestForLanguage(t *testing.T) {
	for _, code := range LanguageCodes() {
		vs := ForLanguage(code)
		if len(vs) == 0 {
			t.Errorf("language %q has no voices", code)
			continue
		}
		for _, v := range vs {
			if !strings.HasPrefix(v, code) {
				t.Errorf("voice %q listed for language %q", v, code)
			}
		}
	}
}

func TestDefaultFor(t *testing.T) {
	if got := DefaultFor("a"); got != DefaultVoice {
		t.Errorf("expected %q for American English, got %q", DefaultVoice, got)
	}
	for _, code := range LanguageCodes() {
		v := DefaultFor(code)
		if !IsVoice(v) {
			t.Errorf("DefaultFor(%q) returned unknown voice %q", code, v)
		}
		if !strings.HasPrefix(v, code) {
			t.Errorf("DefaultFor(%q) returned voice %q of another language", code, v)
		}
	}
}

func TestValidSpeed(t *testing.T) {
	for _, s := range []float64{0.5, 1.0, 1.2, 2.0} {
		if !ValidSpeed(s) {
			t.Errorf("speed %v should be valid", s)
		}
	}
	for _, s := range []float64{0, 0.49, 2.01, -1} {
		if ValidSpeed(s) {
			t.Errorf("speed %v should be invalid", s)
		}
	}
}
