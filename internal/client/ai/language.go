package ai

// Language is a supported feedback language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageRussian Language = "ru"
)

// DetectLanguage classifies the entry text by script. Any Cyrillic letter
// selects Russian; everything else falls back to English. The model gets the
// final say and may answer in another language it detects itself.
func DetectLanguage(text string) Language {
	for _, r := range text {
		if r >= 0x0400 && r <= 0x04FF {
			return LanguageRussian
		}
	}
	return LanguageEnglish
}

// DisplayName returns the English name of the language, used inside the
// system prompt.
func (l Language) DisplayName() string {
	switch l {
	case LanguageRussian:
		return "Russian"
	default:
		return "English"
	}
}
