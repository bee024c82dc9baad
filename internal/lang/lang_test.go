// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectScripts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"arabic", "مرحبا كيف حالك", "ar"},
		{"russian", "Привет, как дела?", "ru"},
		{"greek", "Γεια σου κόσμε", "el"},
		{"hebrew", "שלום עולם", "he"},
		{"kannada", "ನಮಸ್ಕಾರ", "kn"},
		{"chinese", "你好世界", "zh"},
		{"empty", "", "en"},
		{"digits only", "12345", "en"},
		{"plain english", "hello there", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.text))
		})
	}
}

func TestDetectPriorityOrder(t *testing.T) {
	// Arabic outranks every later script when both are present.
	assert.Equal(t, "ar", Detect("hello مرحبا Привет"))
	// Cyrillic outranks Greek.
	assert.Equal(t, "ru", Detect("Привет Γεια"))
}

func TestDetectCantonese(t *testing.T) {
	assert.Equal(t, "zh-yue", Detect("neihou 你好"))
	assert.Equal(t, "zh", Detect("nihao 你好"))
	assert.Equal(t, "zh", Detect("你好"))
}

func TestDetectDiacriticChains(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"ação", "pt"},
		{"mañana", "es"},
		{"café très bien", "fr"},
		{"straße", "de"},
		{"perchè città", "fr"}, // è is claimed by the French rule first
		{"źdźbło", "pl"},
		{"rīga ā", "lv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Detect(tt.text), tt.text)
	}
}

func TestDetectEnglishVariants(t *testing.T) {
	assert.Equal(t, "en-us", Detect("what color is it"))
	assert.Equal(t, "en-gb", Detect("what colour is it"))
	assert.Equal(t, "en-sc", Detect("a wee dram of whisky"))
	assert.Equal(t, "en", Detect("hello world"))
}

func TestIsRTL(t *testing.T) {
	assert.True(t, IsRTL("ar"))
	assert.True(t, IsRTL("he"))
	assert.False(t, IsRTL("en"))
}

func TestSpeechLocale(t *testing.T) {
	assert.Equal(t, "ar-SA", SpeechLocale("ar"))
	assert.Equal(t, "en-GB", SpeechLocale("en-sc"))
	assert.Equal(t, "zh-HK", SpeechLocale("zh-yue"))
	assert.Equal(t, "en-US", SpeechLocale("unknown"))
}

func TestVoiceFilePaths(t *testing.T) {
	paths := VoiceFilePaths("ar")
	assert.Equal(t, "/tts/voices/ar.json", paths[0])
	assert.Equal(t, "/mespeak/voices/ar.json", paths[1])
	assert.Equal(t, "/espeak/espeak-data/voices/ar", paths[2])

	enPaths := VoiceFilePaths("en-gb")
	assert.Equal(t, "/tts/voices/en/en-gb.json", enPaths[0])
}

func TestSystemPromptFallback(t *testing.T) {
	assert.NotEmpty(t, SystemPrompt("ar"))
	assert.Equal(t, SystemPrompt("en"), SystemPrompt("xx"))
	assert.NotEqual(t, SystemPrompt("en"), SystemPrompt("ar"))
}
