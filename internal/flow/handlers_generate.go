package flow

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/BTreeMap/ResumePipe/internal/genai"
	"github.com/BTreeMap/ResumePipe/internal/models"
	"github.com/BTreeMap/ResumePipe/internal/render"
)

// generate renders the résumé, delivers it and offers another design while
// the quota lasts. A failed render or delivery ends the session.
func (e *Engine) generate(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	if s.Generations.Exhausted() {
		return t.End(ReasonTerminated), t.Reply(ctx, msgNoAttemptsLeft)
	}
	if err := t.Reply(ctx, msgGenerating); err != nil {
		return s.State, err
	}

	r := s.Resume.Clone()
	about := e.deps.Assistant.GenerateAboutMe(ctx, r)
	e.deps.Metrics.ObserveEnhancement("about_me", about.Enhanced)
	if about.Enhanced {
		r.AboutMe = about.Value
	}
	r = genai.CleanResume(r)
	if r.AccentColor == "" {
		r.AccentColor = render.DefaultAccentColor
	}

	start := time.Now()
	doc, err := e.deps.Renderer.Render(ctx, r, s.TemplateID)
	e.deps.Metrics.ObserveRender(s.TemplateID, err == nil, time.Since(start))
	if err != nil {
		slog.Error("Engine.generate: render failed", "user_id", s.UserID, "template", s.TemplateID, "error", err)
		return t.End(ReasonFailed), t.Reply(ctx, msgGenerationFailed)
	}

	err = t.SendDocument(ctx, doc.Path, documentName(r.Name), msgDocumentCaption)
	if rmErr := os.Remove(doc.Path); rmErr != nil && !os.IsNotExist(rmErr) {
		slog.Error("Engine.generate: failed to remove PDF", "path", doc.Path, "error", rmErr)
	}
	if err != nil {
		slog.Error("Engine.generate: delivery failed", "user_id", s.UserID, "error", err)
		return t.End(ReasonFailed), t.Reply(ctx, msgGenerationFailed)
	}

	s.Generations.Use()
	s.LastTemplateID = s.TemplateID
	slog.Info("Engine.generate: resume delivered", "user_id", s.UserID, "template", s.TemplateID, "regenerations", s.Regenerations, "remaining", s.Generations.Remaining())
	if e.deps.Usage != nil {
		if _, err := e.deps.Usage.Append(ctx, s.displayName()); err != nil {
			slog.Error("Engine.generate: failed to record usage", "user_id", s.UserID, "error", err)
		}
	}

	if err := t.Replyf(ctx, msgRemainingFmt, s.Generations.Remaining()); err != nil {
		return StateAwaitingRegeneration, err
	}
	var rows [][]models.Button
	if s.Generations.Available() {
		rows = append(rows, []models.Button{{Label: labelRegenerate, Data: dataRegenerate}})
	}
	rows = append(rows, []models.Button{{Label: labelFinish, Data: dataFinish}})
	return StateAwaitingRegeneration, t.Reply(ctx, msgWhatNext, rows...)
}

func (e *Engine) regenerate(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	if s.Generations.Exhausted() {
		return t.End(ReasonTerminated), t.Reply(ctx, msgNoAttemptsLeft)
	}
	s.Regenerations++
	s.Regenerating = true
	if err := t.Reply(ctx, msgNewDesign); err != nil {
		return StateAwaitingRegeneration, err
	}
	return e.askTemplate(ctx, t)
}

func (e *Engine) finish(ctx context.Context, t *Turn) (State, error) {
	return t.End(ReasonCompleted), t.Reply(ctx, msgFinished)
}

// documentName is the file name the user sees for the PDF.
func documentName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return '_'
		}
		return -1
	}, strings.TrimSpace(name))
	if clean == "" {
		clean = "resume"
	}
	return clean + "_resume.pdf"
}
