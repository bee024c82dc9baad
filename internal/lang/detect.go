// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lang provides language detection, speech locales, and localized
// system prompts for chat requests.
package lang

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// SCRIPT RANGES
// =============================================================================

// runeRange is an inclusive Unicode codepoint interval.
type runeRange struct {
	lo, hi rune
}

var (
	arabicRanges = []runeRange{
		{0x0600, 0x06FF},
		{0x0750, 0x077F},
		{0x08A0, 0x08FF},
		{0xFB50, 0xFDFF},
		{0xFE70, 0xFEFF},
	}
	cyrillicRanges = []runeRange{{0x0400, 0x04FF}}
	greekRanges    = []runeRange{{0x0370, 0x03FF}, {0x1F00, 0x1FFF}}
	hebrewRanges   = []runeRange{{0x0590, 0x05FF}}
	phoneticRanges = []runeRange{{0x1D00, 0x1D7F}}
	kannadaRanges  = []runeRange{{0x0C80, 0x0CFF}}
	cjkRanges      = []runeRange{{0x4E00, 0x9FFF}}
	latinExtRanges = []runeRange{{0x00C0, 0x017F}}
)

func containsRange(text string, ranges []runeRange) bool {
	for _, r := range text {
		for _, rr := range ranges {
			if r >= rr.lo && r <= rr.hi {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// KEYWORD PATTERNS
// =============================================================================

var (
	mandarinWords  = regexp.MustCompile(`\b(nihao|hello)\b`)
	cantoneseWords = regexp.MustCompile(`\b(neihou|hello)\b`)
	americanWords  = regexp.MustCompile(`\b(color|organize|realize)\b`)
	britishWords   = regexp.MustCompile(`\b(colour|organise|realise)\b`)
	scottishWords  = regexp.MustCompile(`\b(whisky|loch)\b`)
	latinLetters   = regexp.MustCompile(`[a-zA-Z]`)
)

// diacriticRule maps marker substrings to a language code. Order matters:
// the chains overlap (the French set shares letters with Italian and Czech)
// and the first matching rule wins.
type diacriticRule struct {
	lang    string
	markers []string
}

var diacriticRules = []diacriticRule{
	{"pt", []string{"ç", "ã", "õ"}},
	{"es", []string{"ñ", "¿", "¡"}},
	{"fr", []string{"é", "è", "ê", "à", "ù", "ç"}},
	{"de", []string{"ß", "ä", "ö", "ü"}},
	{"it", []string{"à", "è", "ì", "ò", "ù"}},
	{"cs", []string{"á", "é", "í", "ó", "ú", "ý"}},
	{"pl", []string{"ą", "ę", "ł", "ń", "ś", "ź", "ż"}},
	{"hu", []string{"á", "é", "í", "ó", "ú", "ő", "ű"}},
	{"lv", []string{"ā", "ē", "ī", "ū"}},
	{"sv", []string{"å", "ä", "ö"}},
	{"ro", []string{"ș", "ț"}},
	{"sk", []string{"á", "é", "í", "ó", "ú", "č", "ď", "ľ", "ň", "š", "ť", "ž"}},
	{"tr", []string{"ç", "ğ", "ı", "ö", "ş", "ü"}},
	{"ca", []string{"ç", "·", "l·l"}},
	{"nl", []string{"ij", "oe", "ui"}},
	{"eo", []string{"ĉ", "ĝ", "ĥ", "ĵ", "ŝ", "ŭ"}},
	{"fi", []string{"ä", "ö"}},
}

func matchAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// =============================================================================
// DETECTION
// =============================================================================

// Detect classifies the language of text and returns a short language code.
//
// Classification is a fixed priority list over Unicode script ranges, then
// Latin diacritic markers, then English keyword variants. The first match
// wins. Empty or unrecognized input yields "en".
func Detect(text string) string {
	if text == "" {
		return "en"
	}
	text = norm.NFC.String(text)

	switch {
	case containsRange(text, arabicRanges):
		return "ar"
	case containsRange(text, cyrillicRanges):
		return "ru"
	case containsRange(text, greekRanges):
		return "el"
	case containsRange(text, hebrewRanges):
		return "he"
	case containsRange(text, phoneticRanges):
		return "la"
	case containsRange(text, kannadaRanges):
		return "kn"
	case containsRange(text, cjkRanges):
		if mandarinWords.MatchString(text) {
			return "zh"
		}
		if cantoneseWords.MatchString(text) {
			return "zh-yue"
		}
		return "zh"
	}

	if containsRange(text, latinExtRanges) {
		for _, rule := range diacriticRules {
			if matchAny(text, rule.markers) {
				return rule.lang
			}
		}
	}

	if latinLetters.MatchString(text) {
		switch {
		case americanWords.MatchString(text):
			return "en-us"
		case britishWords.MatchString(text):
			return "en-gb"
		case scottishWords.MatchString(text):
			return "en-sc"
		}
		return "en"
	}

	return "en"
}

// IsRTL reports whether the language is written right to left.
func IsRTL(lang string) bool {
	return lang == "ar" || lang == "he"
}
