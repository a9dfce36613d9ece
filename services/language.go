package services

import "regexp"

type Locale string

const (
	LocaleEN Locale = "en"
	LocaleRU Locale = "ru"
	LocaleKZ Locale = "kz"
)

var (
	kazakhLetters   = regexp.MustCompile(`(?i)[әғіңөүұқһ]`)
	cyrillicLetters = regexp.MustCompile(`(?i)[а-яё]`)
)

// DetectLanguage classifies text by alphabet. Kazakh is checked first since
// Kazakh text also contains the plain Cyrillic letters.
func DetectLanguage(text string) Locale {
	if kazakhLetters.MatchString(text) {
		return LocaleKZ
	}
	if cyrillicLetters.MatchString(text) {
		return LocaleRU
	}
	return LocaleEN
}

// localized returns the entry for locale, falling back to English.
func localized[T any](table map[Locale]T, locale Locale) T {
	if v, ok := table[locale]; ok {
		return v
	}
	return table[LocaleEN]
}
