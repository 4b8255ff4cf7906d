package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

func (e *Engine) askReview(ctx context.Context, t *Turn) (State, error) {
	return StateAskingReview, t.Reply(ctx, msgAskReview, []models.Button{
		{Label: labelReview, Data: dataReviewYes},
		{Label: labelLooksGood, Data: dataReviewNo},
	})
}

func (e *Engine) startReview(ctx context.Context, t *Turn) (State, error) {
	t.Session.ReviewMode = true
	return e.showReviewMenu(ctx, t)
}

func (e *Engine) showReviewMenu(ctx context.Context, t *Turn) (State, error) {
	return StateReviewMenu, t.Reply(ctx, msgReviewMenu,
		[]models.Button{{Label: labelPersonal, Data: dataEditPersonal}, {Label: labelSummary, Data: dataEditSummary}},
		[]models.Button{{Label: labelSkills, Data: dataEditSkills}, {Label: labelExperience, Data: dataEditExperience}},
		[]models.Button{{Label: labelEducation, Data: dataEditEducation}},
		[]models.Button{{Label: labelGeneratePDF, Data: dataEditDone}},
	)
}

// backToMenu reports the outcome of a review step and reopens the menu.
func (e *Engine) backToMenu(ctx context.Context, t *Turn, changed bool, updated, unchanged string) (State, error) {
	msg := unchanged
	if changed {
		msg = updated
	}
	if err := t.Reply(ctx, msg); err != nil {
		return StateReviewMenu, err
	}
	return e.showReviewMenu(ctx, t)
}

// skipReview leaves the review loop for the tailoring question.
func (e *Engine) skipReview(ctx context.Context, t *Turn) (State, error) {
	t.Session.ReviewMode = false
	return e.askTailor(ctx, t)
}

func (e *Engine) editPersonal(ctx context.Context, t *Turn) (State, error) {
	r := t.Session.Resume
	current := fmt.Sprintf("%s, %s, %s", r.Name, r.Email, r.Phone)
	return StateEditingPersonal, t.Reply(ctx, msgCurrentPersonal+current+msgPersonalInstructions)
}

func (e *Engine) receivePersonal(ctx context.Context, t *Turn) (State, error) {
	if IsKeep(t.Input.Text) {
		return e.backToMenu(ctx, t, false, msgPersonalUpdated, msgPersonalUnchanged)
	}
	name, email, phone, err := ParsePersonal(t.Input.Text)
	if err != nil {
		return StateEditingPersonal, t.Reply(ctx, msgInvalidPersonal)
	}
	r := &t.Session.Resume
	r.Name, r.Email, r.Phone = name, email, phone
	return e.backToMenu(ctx, t, true, msgPersonalUpdated, msgPersonalUnchanged)
}

func (e *Engine) editSummary(ctx context.Context, t *Turn) (State, error) {
	return StateGettingSummary, t.Replyf(ctx, msgReviewSummaryFmt, t.Session.Resume.Summary)
}

func (e *Engine) editSkills(ctx context.Context, t *Turn) (State, error) {
	t.Session.beginListReview(listSkills)
	return e.askSkills(ctx, t)
}

func (e *Engine) editExperience(ctx context.Context, t *Turn) (State, error) {
	t.Session.beginListReview(listExperience)
	return e.askExperience(ctx, t)
}

func (e *Engine) editEducation(ctx context.Context, t *Turn) (State, error) {
	t.Session.beginListReview(listEducation)
	return e.askEducation(ctx, t)
}

func (e *Engine) askTailor(ctx context.Context, t *Turn) (State, error) {
	return StateAskingTailor, t.Reply(ctx, msgAskTailor, []models.Button{
		{Label: labelTailorYes, Data: dataTailorYes},
		{Label: labelTailorNo, Data: dataTailorNo},
	})
}

func (e *Engine) askJobDescription(ctx context.Context, t *Turn) (State, error) {
	return StateGettingJobDesc, t.Reply(ctx, msgAskJobDescription)
}

func (e *Engine) skipTailoring(ctx context.Context, t *Turn) (State, error) {
	if err := t.Reply(ctx, msgNoTailoring); err != nil {
		return StateAskingTailor, err
	}
	return e.generate(ctx, t)
}

func (e *Engine) receiveJobDescription(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	if err := t.Reply(ctx, msgTailoring); err != nil {
		return StateGettingJobDesc, err
	}
	tl, ok := e.deps.Assistant.TailorForJob(ctx, s.Resume, t.Input.Text)
	e.deps.Metrics.ObserveEnhancement("tailor", ok)
	if !ok || tl.Summary == "" {
		if err := t.Reply(ctx, msgTailorFailed); err != nil {
			return StateGettingJobDesc, err
		}
		return e.generate(ctx, t)
	}

	s.TailoredSummary = tl.Summary
	skills := "-"
	if len(tl.SuggestedSkills) > 0 {
		skills = strings.Join(tl.SuggestedSkills, ", ")
	}
	return StateAwaitingTailoring, t.Reply(ctx, fmt.Sprintf(msgTailorChoiceFmt, tl.Summary, skills), []models.Button{
		{Label: labelApply, Data: dataTailorApply},
		{Label: labelKeepOriginal, Data: dataTailorKeep},
	})
}

func (e *Engine) approveTailoring(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	msg := msgTailorKept
	if t.Input.Data == dataTailorApply {
		s.Resume.Summary = s.TailoredSummary
		msg = msgTailorApplied
	}
	s.TailoredSummary = ""
	if err := t.Reply(ctx, msg); err != nil {
		return StateAwaitingTailoring, err
	}
	return e.generate(ctx, t)
}
