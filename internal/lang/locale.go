// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lang

import "golang.org/x/text/language"

// speechLocales maps detected language codes to the BCP-47 locales the
// speech engines expect. Scottish English falls back to en-GB.
var speechLocales = map[string]string{
	"ar":     "ar-SA",
	"en":     "en-US",
	"en-us":  "en-US",
	"en-gb":  "en-GB",
	"en-sc":  "en-GB",
	"fr":     "fr-FR",
	"es":     "es-ES",
	"es-la":  "es-MX",
	"pt":     "pt-PT",
	"pt-pt":  "pt-PT",
	"de":     "de-DE",
	"it":     "it-IT",
	"cs":     "cs-CZ",
	"pl":     "pl-PL",
	"hu":     "hu-HU",
	"lv":     "lv-LV",
	"sv":     "sv-SE",
	"ro":     "ro-RO",
	"sk":     "sk-SK",
	"tr":     "tr-TR",
	"ru":     "ru-RU",
	"el":     "el-GR",
	"he":     "he-IL",
	"la":     "la-LA",
	"kn":     "kn-IN",
	"ca":     "ca-ES",
	"nl":     "nl-NL",
	"eo":     "eo-EO",
	"fi":     "fi-FI",
	"zh":     "zh-CN",
	"zh-yue": "zh-HK",
}

// SpeechLocale returns the BCP-47 locale for a detected language code.
// Unknown codes map to "en-US".
func SpeechLocale(lang string) string {
	if locale, ok := speechLocales[lang]; ok {
		return locale
	}
	return "en-US"
}

// Tag parses a detected language code into an x/text language tag.
// Falls back to English for codes that are not valid BCP-47.
func Tag(lang string) language.Tag {
	tag, err := language.Parse(SpeechLocale(lang))
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// VoiceFilePaths returns the candidate offline voice files for a language,
// in lookup order: the bundled tts voices, then the mespeak voices, then the
// espeak voice data.
func VoiceFilePaths(lang string) []string {
	first := "/tts/voices/" + lang + ".json"
	if len(lang) >= 2 && lang[:2] == "en" {
		first = "/tts/voices/en/" + lang + ".json"
	}
	return []string{
		first,
		"/mespeak/voices/" + lang + ".json",
		"/espeak/espeak-data/voices/" + lang,
	}
}
