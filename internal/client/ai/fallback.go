package ai

import "github.com/onelinediary/client/internal/client/models"

// fallbackParts returns canned feedback parts in the entry's language, used
// when no generation credentials are configured.
func fallbackParts(oneLiner string) models.FeedbackParts {
	if DetectLanguage(oneLiner) == LanguageRussian {
		return models.FeedbackParts{
			Reflection: "Похоже, что сегодняшний день оказался непростым, и это нормально — замечать свои чувства.",
			MicroStep:  "Завтра попробуйте выделить маленький момент для отдыха или привычку, которая поддержит вас.",
			Question:   "Что могло бы помочь вам почувствовать себя немного спокойнее завтра?",
		}
	}
	return models.FeedbackParts{
		Reflection: "It sounds like today held meaningful moments worth pausing on.",
		MicroStep:  "Choose one small action tomorrow that nudges the day toward how you want to feel.",
		Question:   "What support or environment would make that tiny step easier?",
	}
}
