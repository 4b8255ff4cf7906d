package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/BTreeMap/ResumePipe/internal/genai"
	"github.com/BTreeMap/ResumePipe/internal/models"
)

func doneRow() []models.Button {
	return []models.Button{{Label: labelDone, Data: dataDone}}
}

func (e *Engine) receiveName(ctx context.Context, t *Turn) (State, error) {
	t.Session.Resume.Name = strings.TrimSpace(t.Input.Text)
	return StateGettingContacts, t.Reply(ctx, msgAskContacts)
}

func (e *Engine) receiveContacts(ctx context.Context, t *Turn) (State, error) {
	email, phone, err := ParseContacts(t.Input.Text)
	if err != nil {
		return StateGettingContacts, t.Reply(ctx, msgInvalidContacts)
	}
	t.Session.Resume.Email = email
	t.Session.Resume.Phone = phone
	return StateGettingSummary, t.Reply(ctx, msgAskSummary)
}

// summaryStyle follows the chosen template, if any.
func (e *Engine) summaryStyle(s *Session) string {
	if tpl, ok := e.deps.Catalog.ByID(s.TemplateID); ok && tpl.Style == genai.StyleCreative {
		return genai.StyleCreative
	}
	return genai.StyleModern
}

func (e *Engine) receiveSummary(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	text := t.Input.Text
	if s.ReviewMode && IsKeep(text) {
		if err := t.Reply(ctx, msgSummaryUnchanged); err != nil {
			return StateReviewMenu, err
		}
		return e.showReviewMenu(ctx, t)
	}
	if ok, next, err := e.guardEnglish(ctx, t, text); !ok {
		return next, err
	}

	s.OriginalSummary = text
	if err := t.Reply(ctx, msgEnhancingSummary); err != nil {
		return StateGettingSummary, err
	}
	res := e.deps.Assistant.EnhanceSummary(ctx, text, e.summaryStyle(s))
	e.deps.Metrics.ObserveEnhancement("summary", res.Enhanced)
	if !res.Enhanced {
		s.Resume.Summary = text
		if err := t.Reply(ctx, msgSummaryAIFailed); err != nil {
			return StateGettingSummary, err
		}
		return e.afterSummary(ctx, t)
	}

	s.EnhancedSummary = res.Value
	return StateAwaitingSummaryApproval, t.Reply(ctx, fmt.Sprintf(msgSummaryChoiceFmt, res.Value, text), []models.Button{
		{Label: labelUseAI, Data: dataSummaryAI},
		{Label: labelKeepMine, Data: dataSummaryOwn},
	})
}

func (e *Engine) approveSummary(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	msg := msgSummaryOwnSaved
	s.Resume.Summary = s.OriginalSummary
	if t.Input.Data == dataSummaryAI {
		msg = msgSummaryAISaved
		s.Resume.Summary = s.EnhancedSummary
	}
	s.OriginalSummary, s.EnhancedSummary = "", ""
	if err := t.Reply(ctx, msg); err != nil {
		return StateAwaitingSummaryApproval, err
	}
	return e.afterSummary(ctx, t)
}

func (e *Engine) afterSummary(ctx context.Context, t *Turn) (State, error) {
	if t.Session.ReviewMode {
		return e.showReviewMenu(ctx, t)
	}
	return e.askSkills(ctx, t)
}

func (e *Engine) askSkills(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	if s.ReviewMode && len(s.Resume.Skills) > 0 {
		return StateGettingSkills, t.Reply(ctx, fmt.Sprintf(msgReviewSkillsFmt, formatSkills(s.Resume.Skills)), doneRow())
	}
	return StateGettingSkills, t.Reply(ctx, msgAskSkills, doneRow())
}

func (e *Engine) receiveSkill(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	skill, err := ParseSkill(t.Input.Text)
	if err != nil {
		return StateGettingSkills, t.Reply(ctx, msgInvalidSkill)
	}
	s.clearOnFirstEntry(listSkills)
	s.Resume.Skills = append(s.Resume.Skills, skill)
	s.added[listSkills]++
	return StateGettingSkills, t.Replyf(ctx, msgSkillAddedFmt, skill.Name, skill.Rating)
}

func (e *Engine) skillsDone(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	n := s.finishList(listSkills)
	if s.ReviewMode {
		return e.backToMenu(ctx, t, n > 0, msgSkillsUpdated, msgSkillsUnchanged)
	}
	if err := t.Reply(ctx, msgSkillsComplete); err != nil {
		return StateGettingSkills, err
	}
	return e.askExperience(ctx, t)
}

func (e *Engine) askExperience(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	if s.ReviewMode && len(s.Resume.Experience) > 0 {
		return StateGettingExperience, t.Reply(ctx, fmt.Sprintf(msgReviewExperienceFmt, formatEntries(s.Resume.Experience)), doneRow())
	}
	return StateGettingExperience, t.Reply(ctx, msgAskExperience, doneRow())
}

func (e *Engine) receiveExperience(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	if ok, next, err := e.guardEnglish(ctx, t, t.Input.Text); !ok {
		return next, err
	}
	s.clearOnFirstEntry(listExperience)
	s.Resume.Experience = append(s.Resume.Experience, t.Input.Text)
	s.added[listExperience]++
	return StateGettingExperience, t.Reply(ctx, msgExperienceAdded)
}

func (e *Engine) experienceDone(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	n := s.finishList(listExperience)
	if s.ReviewMode {
		if n > 0 {
			if err := e.enhanceExperience(ctx, t); err != nil {
				return StateGettingExperience, err
			}
		}
		return e.backToMenu(ctx, t, n > 0, msgExperienceUpdated, msgExperienceUnchanged)
	}

	if err := t.Reply(ctx, msgEnhancingExperience); err != nil {
		return StateGettingExperience, err
	}
	if len(s.Resume.Experience) > 0 {
		if err := e.enhanceExperience(ctx, t); err != nil {
			return StateGettingExperience, err
		}
	}
	return e.askEducation(ctx, t)
}

// enhanceExperience rewrites every entry's description in one AI call,
// keeping the originals when that fails.
func (e *Engine) enhanceExperience(ctx context.Context, t *Turn) error {
	s := t.Session
	res := e.deps.Assistant.EnhanceExperiences(ctx, s.Resume.Experience)
	e.deps.Metrics.ObserveEnhancement("experience", res.Enhanced)
	if !res.Enhanced {
		return t.Reply(ctx, msgExperienceAIFailed)
	}
	s.Resume.Experience = res.Values
	return t.Reply(ctx, msgExperienceEnhanced)
}

func (e *Engine) askEducation(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	if s.ReviewMode && len(s.Resume.Education) > 0 {
		return StateGettingEducation, t.Reply(ctx, fmt.Sprintf(msgReviewEducationFmt, formatEntries(s.Resume.Education)), doneRow())
	}
	return StateGettingEducation, t.Reply(ctx, msgAskEducation, doneRow())
}

func (e *Engine) receiveEducation(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	if ok, next, err := e.guardEnglish(ctx, t, t.Input.Text); !ok {
		return next, err
	}
	s.clearOnFirstEntry(listEducation)
	s.Resume.Education = append(s.Resume.Education, t.Input.Text)
	s.added[listEducation]++
	return StateGettingEducation, t.Reply(ctx, msgEducationAdded)
}

func (e *Engine) educationDone(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	n := s.finishList(listEducation)
	if s.ReviewMode {
		return e.backToMenu(ctx, t, n > 0, msgEducationUpdated, msgEducationUnchanged)
	}
	if err := t.Reply(ctx, msgAllCollected); err != nil {
		return StateGettingEducation, err
	}
	return e.askPhoto(ctx, t)
}
