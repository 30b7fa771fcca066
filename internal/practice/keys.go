package practice

import "github.com/pavelanni/studyhub/internal/model"

// Persisted slot names. Mode histories use Slot.
const (
	keyCurrentSession    = "currentSession"
	keySessions          = "practiceSessions"
	keyFilteredList      = "filteredQuestionList"
	keyWrongQuestions    = "wrongQuestions"
	keyFavoriteIDs       = "favoriteIds"
	keyFavoriteQuestions = "favoriteQuestions"
	keyQuestionDetails   = "questionDetails"
	keyMigrated          = "sessionsMigrated"
	keyPendingRemovals   = "pendingWrongRemovals"
	keyFailedRemovals    = "failedWrongRemovals"
	keyLegacyHistory     = "practiceHistory"
)

// Slot returns the persisted slot holding the history of mode.
func Slot(mode model.Mode) string {
	switch mode {
	case model.ModeWrong:
		return "wrongAnswerHistory"
	case model.ModeFavorites:
		return "favoriteAnswerHistory"
	}
	return "answerHistory"
}
