package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/BTreeMap/ResumePipe/internal/metrics"
	"github.com/BTreeMap/ResumePipe/internal/models"
	"github.com/BTreeMap/ResumePipe/internal/store"
	"github.com/BTreeMap/ResumePipe/internal/translate"
)

func languageButtons() []models.Button {
	return []models.Button{
		{Label: labelEnglish, Data: dataLangEnglish},
		{Label: labelSinhala, Data: dataLangSinhala},
	}
}

func (e *Engine) chooseLanguage(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	s.Language = translate.English
	if t.Input.Data == dataLangSinhala {
		s.Language = translate.Sinhala
	}
	t.lang = s.Language

	if !e.cfg.RequireVerification {
		return e.verified(ctx, t)
	}
	return StateAwaitingCode, t.Reply(ctx, msgWelcome)
}

func (e *Engine) verifyCode(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	code := store.NormalizeCode(t.Input.Text)
	ok, err := e.deps.Codes.Consume(ctx, code, s.UserID)
	if err != nil {
		slog.Error("Engine.verifyCode: code store unavailable", "user_id", s.UserID, "error", err)
		return StateAwaitingCode, t.Reply(ctx, msgVerificationDown)
	}
	if !ok {
		s.Verifications.Use()
		slog.Info("Engine.verifyCode: invalid code", "user_id", s.UserID, "remaining", s.Verifications.Remaining())
		if s.Verifications.Exhausted() {
			return t.End(ReasonTerminated), t.Reply(ctx, msgVerificationLimit)
		}
		return StateAwaitingCode, t.Replyf(ctx, msgInvalidCodeFmt, s.Verifications.Remaining())
	}
	return e.verified(ctx, t)
}

func (e *Engine) verified(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	s.Verified = true
	e.deps.Metrics.ObserveSession(metrics.SessionVerified)
	slog.Info("Engine.verified: session verified", "user_id", s.UserID, "session_id", s.ID, "language", s.Language)
	if err := t.Replyf(ctx, msgVerifiedFmt, s.Generations.Remaining()); err != nil {
		return StateChoosingInputMethod, err
	}
	return StateChoosingInputMethod, t.Reply(ctx, msgChooseInputMethod, []models.Button{
		{Label: labelFillTemplate, Data: dataMethodForm},
		{Label: labelStepByStep, Data: dataMethodSteps},
	})
}

func (e *Engine) chooseForm(ctx context.Context, t *Turn) (State, error) {
	return StateAwaitingForm, t.Reply(ctx, msgFormTemplate)
}

func (e *Engine) chooseSteps(ctx context.Context, t *Turn) (State, error) {
	return StateGettingName, t.Reply(ctx, msgAskName)
}

func (e *Engine) receiveForm(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	if err := t.Reply(ctx, msgProcessingForm); err != nil {
		return StateAwaitingForm, err
	}
	r, err := e.deps.Assistant.ParseResumeForm(ctx, t.Input.Text)
	e.deps.Metrics.ObserveEnhancement("form", err == nil)
	if err != nil {
		slog.Warn("Engine.receiveForm: could not parse form", "user_id", s.UserID, "error", err)
		return StateAwaitingForm, t.Reply(ctx, msgFormFailed)
	}

	content := strings.Join(append(append([]string{r.Summary}, r.Experience...), r.Education...), "\n")
	if ok, next, err := e.guardEnglish(ctx, t, content); !ok {
		return next, err
	}

	r.PhotoPath = s.Resume.PhotoPath
	r.AccentColor = s.Resume.AccentColor
	s.Resume = r
	if err := t.Reply(ctx, msgFormExtracted+formatResume(r)); err != nil {
		return StateChoosingPhoto, err
	}
	return e.askPhoto(ctx, t)
}

// guardEnglish rejects résumé content written in another language. It
// returns false with the state to move to when the input was rejected.
// Short inputs and detection failures are accepted.
func (e *Engine) guardEnglish(ctx context.Context, t *Turn, text string) (bool, State, error) {
	s := t.Session
	text = strings.TrimSpace(text)
	if e.deps.Detector == nil || utf8.RuneCountInString(text) < e.cfg.MinDetectLength {
		return true, s.State, nil
	}
	lang, err := e.deps.Detector.Detect(ctx, text)
	if err != nil {
		slog.Debug("Engine.guardEnglish: detection failed, accepting input", "user_id", s.UserID, "error", err)
		return true, s.State, nil
	}
	if lang == translate.English {
		return true, s.State, nil
	}

	s.LanguageWarns++
	slog.Info("Engine.guardEnglish: non-English input", "user_id", s.UserID, "detected", lang, "warnings", s.LanguageWarns)
	if s.LanguageWarns >= e.cfg.MaxLanguageWarnings {
		return false, t.End(ReasonTerminated), t.Reply(ctx, msgLanguageTerminate)
	}
	return false, s.State, t.Reply(ctx, msgLanguageWarning)
}

// formatResume lists the collected fields for the user to check.
func formatResume(r models.Resume) string {
	var b strings.Builder
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	field("Name", r.Name)
	field("Email", r.Email)
	field("Phone", r.Phone)
	field("Birthday", r.Birthday)
	field("Website", r.Website)
	field("Address", r.Address)
	field("Languages", r.Languages)
	field("Summary", r.Summary)
	if len(r.Skills) > 0 {
		fmt.Fprintf(&b, "Skills:\n%s\n", formatSkills(r.Skills))
	}
	if len(r.Experience) > 0 {
		fmt.Fprintf(&b, "Experience:\n%s\n", formatEntries(r.Experience))
	}
	if len(r.Education) > 0 {
		fmt.Fprintf(&b, "Education:\n%s\n", formatEntries(r.Education))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSkills(skills []models.Skill) string {
	lines := make([]string, len(skills))
	for i, s := range skills {
		lines[i] = fmt.Sprintf("- %s (Rating: %d)", s.Name, s.Rating)
	}
	return strings.Join(lines, "\n")
}

func formatEntries(entries []string) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = "- " + e
	}
	return strings.Join(lines, "\n")
}
