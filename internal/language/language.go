// Package language provides rule-based spoken-language detection for
// turn annotation. It distinguishes English, Hindi, code-switched
// Hinglish, and unknown, without calling out to a model service.
package language

import (
	"strings"
	"unicode"
)

// Language codes attached to turns.
const (
	English  = "en"
	Hindi    = "hi"
	Hinglish = "hinglish"
	Unknown  = "unknown"
)

// romanHindiMarkers are common romanized Hindi function words. A Latin
// transcript containing them is Hindi or Hinglish depending on how much
// English rides along.
var romanHindiMarkers = map[string]struct{}{
	"hai":     {},
	"nahi":    {},
	"nahin":   {},
	"kya":     {},
	"aap":     {},
	"mera":    {},
	"meri":    {},
	"karna":   {},
	"kaise":   {},
	"acha":    {},
	"theek":   {},
	"haan":    {},
	"hum":     {},
	"kyun":    {},
	"chahiye": {},
}

// Detect classifies a transcript. Devanagari text is Hindi; Latin text
// with romanized Hindi words is Hinglish when English words are mixed
// in, Hindi when they dominate; plain Latin text is English; anything
// without letters is unknown.
func Detect(text string) string {
	var devanagari, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Devanagari, r):
			devanagari++
		case unicode.IsLetter(r):
			latin++
		}
	}

	if devanagari == 0 && latin == 0 {
		return Unknown
	}
	if devanagari > 0 {
		if latin > devanagari {
			return Hinglish
		}
		return Hindi
	}

	words := strings.Fields(strings.ToLower(text))
	var hindiWords int
	for _, w := range words {
		w = strings.Trim(w, ".,!?'\"")
		if _, ok := romanHindiMarkers[w]; ok {
			hindiWords++
		}
	}
	if hindiWords == 0 {
		return English
	}
	if hindiWords*2 > len(words) {
		return Hindi
	}
	return Hinglish
}
