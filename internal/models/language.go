package models

import "strings"

// Language is a supported card locale. The same codes are used for every
// provider's set lookups.
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageJapanese   Language = "ja"
	LanguageGerman     Language = "de"
	LanguageFrench     Language = "fr"
	LanguageItalian    Language = "it"
	LanguageSpanish    Language = "es"
	LanguagePortuguese Language = "pt"
)

// NormalizeLanguage maps various language string formats to a Language.
// Handles ISO codes, display names and common variations.
// Returns LanguageEnglish as default for unknown/empty values.
func NormalizeLanguage(lang string) Language {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "japanese", "jp", "ja", "jpn":
		return LanguageJapanese
	case "german", "de", "deu", "ger":
		return LanguageGerman
	case "french", "fr", "fra", "fre":
		return LanguageFrench
	case "italian", "it", "ita":
		return LanguageItalian
	case "spanish", "es", "spa", "esp":
		return LanguageSpanish
	case "portuguese", "pt", "por", "pt-br":
		return LanguagePortuguese
	default:
		return LanguageEnglish
	}
}
