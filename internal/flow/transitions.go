package flow

import (
	"context"
	"strings"
)

// HandlerFunc handles one input and returns the next state.
type HandlerFunc func(ctx context.Context, t *Turn) (State, error)

// Matcher selects the inputs a route accepts.
type Matcher func(in Input) bool

// Route binds a matcher to a handler within one state.
type Route struct {
	Name   string
	Match  Matcher
	Handle HandlerFunc
}

func onButton(data ...string) Matcher {
	return func(in Input) bool {
		if in.Kind != KindButton {
			return false
		}
		for _, d := range data {
			if in.Data == d {
				return true
			}
		}
		return false
	}
}

func onButtonPrefix(prefix string) Matcher {
	return func(in Input) bool {
		return in.Kind == KindButton && strings.HasPrefix(in.Data, prefix)
	}
}

// onChoice accepts the button or its English label typed out, even when the
// button is no longer offered.
func onChoice(data, label string) Matcher {
	return func(in Input) bool {
		switch in.Kind {
		case KindButton:
			return in.Data == data
		case KindText:
			return in.Text == label
		}
		return false
	}
}

func onText(in Input) bool {
	return in.Kind == KindText && in.Text != ""
}

func onPhoto(in Input) bool {
	return in.Kind == KindPhoto
}

func onDone(in Input) bool {
	return (in.Kind == KindButton && in.Data == dataDone) || (in.Kind == KindText && IsDone(in.Text))
}

// transitionTable lists, per state, the routes tried in order. Input no
// route accepts is rejected and the state is kept.
func (e *Engine) transitionTable() map[State][]Route {
	return map[State][]Route{
		StateChoosingLanguage: {
			{Name: "language", Match: onButton(dataLangEnglish, dataLangSinhala), Handle: e.chooseLanguage},
		},
		StateAwaitingCode: {
			{Name: "code", Match: onText, Handle: e.verifyCode},
		},
		StateChoosingInputMethod: {
			{Name: "form", Match: onButton(dataMethodForm), Handle: e.chooseForm},
			{Name: "steps", Match: onButton(dataMethodSteps), Handle: e.chooseSteps},
		},
		StateAwaitingForm: {
			{Name: "form_text", Match: onText, Handle: e.receiveForm},
		},
		StateGettingName: {
			{Name: "name", Match: onText, Handle: e.receiveName},
		},
		StateGettingContacts: {
			{Name: "contacts", Match: onText, Handle: e.receiveContacts},
		},
		StateGettingSummary: {
			{Name: "summary", Match: onText, Handle: e.receiveSummary},
		},
		StateAwaitingSummaryApproval: {
			{Name: "summary_ai", Match: onButton(dataSummaryAI), Handle: e.approveSummary},
			{Name: "summary_own", Match: onButton(dataSummaryOwn), Handle: e.approveSummary},
		},
		StateGettingSkills: {
			{Name: "skills_done", Match: onDone, Handle: e.skillsDone},
			{Name: "skill", Match: onText, Handle: e.receiveSkill},
		},
		StateGettingExperience: {
			{Name: "experience_done", Match: onDone, Handle: e.experienceDone},
			{Name: "experience", Match: onText, Handle: e.receiveExperience},
		},
		StateGettingEducation: {
			{Name: "education_done", Match: onDone, Handle: e.educationDone},
			{Name: "education", Match: onText, Handle: e.receiveEducation},
		},
		StateChoosingPhoto: {
			{Name: "photo_yes", Match: onButton(dataPhotoYes), Handle: e.askForPhoto},
			{Name: "photo_no", Match: onButton(dataPhotoNo), Handle: e.skipPhoto},
			{Name: "photo_direct", Match: onPhoto, Handle: e.receivePhoto},
		},
		StateAwaitingPhoto: {
			{Name: "photo", Match: onPhoto, Handle: e.receivePhoto},
			{Name: "photo_skip", Match: onButton(dataPhotoNo), Handle: e.skipPhoto},
		},
		StateChoosingColor: {
			{Name: "color", Match: onButtonPrefix(dataColorPrefix), Handle: e.chooseColor},
			{Name: "color_text", Match: onText, Handle: e.chooseColor},
		},
		StateChoosingTemplate: {
			{Name: "template_random", Match: onButton(dataTemplateRandom), Handle: e.chooseTemplate},
			{Name: "template", Match: onButtonPrefix(dataTemplatePrefix), Handle: e.chooseTemplate},
			{Name: "template_number", Match: onText, Handle: e.chooseTemplate},
		},
		StateAskingReview: {
			{Name: "review_yes", Match: onButton(dataReviewYes), Handle: e.startReview},
			{Name: "review_no", Match: onButton(dataReviewNo), Handle: e.skipReview},
		},
		StateReviewMenu: {
			{Name: "edit_personal", Match: onButton(dataEditPersonal), Handle: e.editPersonal},
			{Name: "edit_summary", Match: onButton(dataEditSummary), Handle: e.editSummary},
			{Name: "edit_skills", Match: onButton(dataEditSkills), Handle: e.editSkills},
			{Name: "edit_experience", Match: onButton(dataEditExperience), Handle: e.editExperience},
			{Name: "edit_education", Match: onButton(dataEditEducation), Handle: e.editEducation},
			{Name: "edit_done", Match: onButton(dataEditDone), Handle: e.skipReview},
		},
		StateEditingPersonal: {
			{Name: "personal", Match: onText, Handle: e.receivePersonal},
		},
		StateAskingTailor: {
			{Name: "tailor_yes", Match: onButton(dataTailorYes), Handle: e.askJobDescription},
			{Name: "tailor_no", Match: onButton(dataTailorNo), Handle: e.skipTailoring},
		},
		StateGettingJobDesc: {
			{Name: "job_description", Match: onText, Handle: e.receiveJobDescription},
		},
		StateAwaitingTailoring: {
			{Name: "tailor_apply", Match: onButton(dataTailorApply), Handle: e.approveTailoring},
			{Name: "tailor_keep", Match: onButton(dataTailorKeep), Handle: e.approveTailoring},
		},
		StateAwaitingRegeneration: {
			{Name: "regenerate", Match: onChoice(dataRegenerate, labelRegenerate), Handle: e.regenerate},
			{Name: "finish", Match: onChoice(dataFinish, labelFinish), Handle: e.finish},
		},
	}
}
