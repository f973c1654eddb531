// Package voices holds the static language and voice catalogs of the
// Kokoro-82M model family, plus the playback speed bounds.
package voices

import (
	"sort"
	"strings"
)

const (
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
	DefaultSpeed = 1.2

	DefaultLanguage = "a"
	DefaultVoice    = "af_heart"

	// SampleRate is the native output rate of the Kokoro model.
	SampleRate = 24000
)

var languages = map[string]string{
	"a": "American English",
	"b": "British English",
	"e": "Spanish",
	"f": "French",
	"h": "Hindi",
	"i": "Italian",
	"p": "Brazilian Portuguese",
	"j": "Japanese",
	"z": "Mandarin Chinese",
}

var catalog = []string{
	"af_alloy", "af_aoede", "af_bella", "af_heart", "af_jessica",
	"af_kore", "af_nicole", "af_nova", "af_river", "af_sarah", "af_sky",
	"am_adam", "am_echo", "am_eric", "am_fenrir", "am_liam", "am_michael",
	"am_onyx", "am_puck", "am_santa",
	"bf_alice", "bf_emma", "bf_isabella", "bf_lily",
	"bm_daniel", "bm_fable", "bm_george", "bm_lewis",
	"ef_dora", "em_alex", "em_santa",
	"ff_siwis",
	"hf_alpha", "hf_beta", "hm_omega", "hm_psi",
	"if_sara", "im_nicola",
	"jf_alpha", "jf_gongitsune", "jf_nezumi", "jf_tebukuro", "jm_kumo",
	"pf_dora", "pm_alex", "pm_santa",
	"zf_xiaobei", "zf_xiaoni", "zf_xiaoxiao", "zf_xiaoyi",
	"zm_yunjian", "zm_yunxi", "zm_yunxia", "zm_yunyang",
}

// Languages returns the language code to display name mapping.
func Languages() map[string]string {
	out := make(map[string]string, len(languages))
	for code, name := range languages {
		out[code] = name
	}
	return out
}

// LanguageCodes returns the known language codes in sorted order.
func LanguageCodes() []string {
	codes := make([]string, 0, len(languages))
	for code := range languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// LanguageName returns the display name for a code, or "" for unknown codes.
func LanguageName(code string) string {
	return languages[code]
}

// IsLanguage reports whether code names a supported language.
func IsLanguage(code string) bool {
	_, ok := languages[code]
	return ok
}

// All returns every voice in the catalog.
func All() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// IsVoice reports whether name is a known voice.
func IsVoice(name string) bool {
	for _, v := range catalog {
		if v == name {
			return true
		}
	}
	return false
}

// ForLanguage returns the voices whose prefix matches the language code.
func ForLanguage(code string) []string {
	var out []string
	for _, v := range catalog {
		if len(v) > 0 && string(v[0]) == code {
			out = append(out, v)
		}
	}
	return out
}

// DefaultFor returns the preferred voice for a language: the global
// default when it belongs to that language, otherwise the first catalog
// voice with a matching prefix.
func DefaultFor(code string) string {
	if strings.HasPrefix(DefaultVoice, code) {
		return DefaultVoice
	}
	vs := ForLanguage(code)
	if len(vs) == 0 {
		return DefaultVoice
	}
	return vs[0]
}

// ValidSpeed reports whether s is within the supported playback range.
func ValidSpeed(s float64) bool {
	return s >= MinSpeed && s <= MaxSpeed
}
