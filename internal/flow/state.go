// Package flow implements the résumé conversation: per-user sessions, the
// state transition table, step handlers, idle timeouts and quotas.
package flow

// State is the position of a session in the conversation.
type State string

const (
	StateChoosingLanguage State = "choosing_language"
	StateAwaitingCode     State = "awaiting_code"

	StateChoosingInputMethod State = "choosing_input_method"
	StateAwaitingForm        State = "awaiting_form"

	StateGettingName             State = "getting_name"
	StateGettingContacts         State = "getting_contacts"
	StateGettingSummary          State = "getting_summary"
	StateAwaitingSummaryApproval State = "awaiting_summary_approval"
	StateGettingSkills           State = "getting_skills"
	StateGettingExperience       State = "getting_experience"
	StateGettingEducation        State = "getting_education"

	StateChoosingPhoto    State = "choosing_photo"
	StateAwaitingPhoto    State = "awaiting_photo"
	StateChoosingColor    State = "choosing_color"
	StateChoosingTemplate State = "choosing_template"

	StateAskingReview      State = "asking_review"
	StateReviewMenu        State = "review_menu"
	StateEditingPersonal   State = "editing_personal"
	StateAskingTailor      State = "asking_tailor"
	StateGettingJobDesc    State = "getting_job_description"
	StateAwaitingTailoring State = "awaiting_tailor_approval"

	StateAwaitingRegeneration State = "awaiting_regeneration"

	// StateEnded is terminal: the engine clears the session once a handler returns it.
	StateEnded State = "ended"
)

// AllStates lists every non-terminal state.
var AllStates = []State{
	StateChoosingLanguage, StateAwaitingCode,
	StateChoosingInputMethod, StateAwaitingForm,
	StateGettingName, StateGettingContacts, StateGettingSummary, StateAwaitingSummaryApproval,
	StateGettingSkills, StateGettingExperience, StateGettingEducation,
	StateChoosingPhoto, StateAwaitingPhoto, StateChoosingColor, StateChoosingTemplate,
	StateAskingReview, StateReviewMenu, StateEditingPersonal,
	StateAskingTailor, StateGettingJobDesc, StateAwaitingTailoring,
	StateAwaitingRegeneration,
}

// PreVerification reports whether s is reachable before the user is verified.
func (s State) PreVerification() bool {
	return s == StateChoosingLanguage || s == StateAwaitingCode
}

// Terminal reports whether s ends the session.
func (s State) Terminal() bool {
	return s == StateEnded
}

// numberedChoice reports whether a typed number in s picks the option with
// that number from the last numbered list.
func (s State) numberedChoice() bool {
	switch s {
	case StateChoosingLanguage, StateChoosingInputMethod, StateAwaitingSummaryApproval,
		StateChoosingPhoto, StateAwaitingPhoto, StateChoosingColor,
		StateAskingReview, StateReviewMenu, StateAskingTailor, StateAwaitingTailoring,
		StateAwaitingRegeneration:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}
