// Package detector resolves an "auto" source language to a concrete
// ISO 639-1 code before a request is dispatched.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// Auto is the source language value that asks for detection.
const Auto = "auto"

// DefaultLanguages covers the languages the built-in providers translate
// between. A smaller candidate set keeps detection fast and less
// ambiguous on short input.
var DefaultLanguages = []lingua.Language{
	lingua.English,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Russian,
	lingua.Ukrainian,
	lingua.Polish,
	lingua.Arabic,
}

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector over languages, or over DefaultLanguages when none
// are given.
func New(languages ...lingua.Language) *Detector {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(languages...).
		Build()

	return &Detector{detector: detector}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the lower-case ISO 639-1 code of text, the form the
// providers expect.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// Resolve returns sourceLang unchanged unless it is empty or "auto", in
// which case it returns the detected code. Undetectable text stays "auto"
// so providers fall back to their own detection.
func (d *Detector) Resolve(text, sourceLang string) string {
	if sourceLang != "" && !strings.EqualFold(sourceLang, Auto) {
		return sourceLang
	}
	if code, ok := d.DetectISO(text); ok {
		return code
	}
	return Auto
}

// minCheckLength is the rune count below which Check does not attempt
// detection.
const minCheckLength = 20

// Check reports whether translated text appears to be written in
// targetLang. Short or ambiguous text, and an empty targetLang, pass. On a
// mismatch the returned code is the detected language.
func (d *Detector) Check(translated, targetLang string) (bool, string) {
	if targetLang == "" {
		return true, ""
	}
	text := strings.TrimSpace(translated)
	if len([]rune(text)) < minCheckLength {
		return true, ""
	}
	detected, ok := d.DetectISO(text)
	if !ok {
		return true, ""
	}
	return detected == baseLanguage(targetLang), detected
}

// baseLanguage reduces "zh-CN" or "PT_br" to "zh" or "pt".
func baseLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	return code
}
