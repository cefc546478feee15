package intent

import "github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"

// allowedWhileCollecting are the intent types that may pass unmodified while
// the profile flow is waiting for a field value.
var allowedWhileCollecting = map[models.IntentType]bool{
	models.IntentNumericList:       true,
	models.IntentAffirmative:       true,
	models.IntentNegative:          true,
	models.IntentSkip:              true,
	models.IntentCasual:            true,
	models.IntentProfileFieldInput: true,
}

// ValidateIntentForUserState re-checks it against the session and profile and
// returns a copy that may be marked blocked. profile may be nil.
func ValidateIntentForUserState(it models.Intent, sess *models.Session, profile *models.Profile) models.Intent {
	out := it
	if sess != nil {
		state := sess.State()
		if models.IsCollecting(state) {
			allowed := allowedWhileCollecting[it.Type]
			if it.Type == models.IntentEmail && state.Kind() == models.WaitingAdditionalEmailInput {
				allowed = true
			}
			if !allowed {
				out.Blocked = true
				out.BlockReason = models.BlockProfileUpdateInProgress
				return out
			}
		}
	}
	if it.Type == models.IntentSearch && !profile.CanSearch() {
		out.Blocked = true
		out.BlockReason = models.BlockProfileIncomplete
	}
	return out
}
