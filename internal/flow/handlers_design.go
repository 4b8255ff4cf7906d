package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ResumePipe/internal/models"
	"github.com/BTreeMap/ResumePipe/internal/render"
)

func (e *Engine) askPhoto(ctx context.Context, t *Turn) (State, error) {
	if e.deps.Photos == nil {
		return e.askColor(ctx, t)
	}
	return StateChoosingPhoto, t.Reply(ctx, msgAskPhoto, []models.Button{
		{Label: labelAddPhoto, Data: dataPhotoYes},
		{Label: labelSkipPhoto, Data: dataPhotoNo},
	})
}

func (e *Engine) askForPhoto(ctx context.Context, t *Turn) (State, error) {
	return StateAwaitingPhoto, t.Reply(ctx, msgUploadPhoto, skipPhotoRow())
}

func skipPhotoRow() []models.Button {
	return []models.Button{{Label: labelSkipPhoto, Data: dataPhotoNo}}
}

func (e *Engine) skipPhoto(ctx context.Context, t *Turn) (State, error) {
	if err := t.Reply(ctx, msgPhotoSkipped); err != nil {
		return StateChoosingPhoto, err
	}
	return e.askColor(ctx, t)
}

func (e *Engine) receivePhoto(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	path, err := e.savePhoto(ctx, t)
	if err != nil {
		slog.Warn("Engine.receivePhoto: photo rejected", "user_id", s.UserID, "error", err)
		return StateAwaitingPhoto, t.Reply(ctx, msgPhotoFailed, skipPhotoRow())
	}
	s.Resume.PhotoPath = path
	slog.Debug("Engine.receivePhoto: photo stored", "user_id", s.UserID, "path", path)
	if err := t.Reply(ctx, msgPhotoReceived); err != nil {
		return StateChoosingColor, err
	}
	return e.askColor(ctx, t)
}

var errNoPhotoStore = errors.New("photos are not accepted")

func (e *Engine) savePhoto(ctx context.Context, t *Turn) (string, error) {
	att := t.Input.Attachment
	if e.deps.Photos == nil || att == nil {
		return "", errNoPhotoStore
	}
	if att.ContentType != "" && !strings.HasPrefix(att.ContentType, "image/") {
		return "", fmt.Errorf("unsupported content type %q", att.ContentType)
	}
	rc, err := t.transport.DownloadAttachment(ctx, *att)
	if err != nil {
		return "", fmt.Errorf("download attachment: %w", err)
	}
	defer rc.Close()
	return e.deps.Photos.Save(t.Session.Key, rc)
}

func (e *Engine) askColor(ctx context.Context, t *Turn) (State, error) {
	var rows [][]models.Button
	for i, c := range AccentColors {
		if i%2 == 0 {
			rows = append(rows, nil)
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], models.Button{Label: c.Name, Data: dataColorPrefix + c.Name})
	}
	return StateChoosingColor, t.Reply(ctx, msgChooseColor, rows...)
}

func (e *Engine) chooseColor(ctx context.Context, t *Turn) (State, error) {
	choice := t.Input.Text
	if t.Input.Kind == KindButton {
		choice = strings.TrimPrefix(t.Input.Data, dataColorPrefix)
	}
	c, err := ParseColor(choice)
	if err != nil {
		return StateChoosingColor, t.Reply(ctx, msgInvalidColor)
	}
	t.Session.Resume.AccentColor = c.Hex
	return e.askTemplate(ctx, t)
}

// askTemplate offers every catalog template. Transports without native
// buttons already number the options, so the list is only spelled out in
// the text for the others.
func (e *Engine) askTemplate(ctx context.Context, t *Turn) (State, error) {
	c := e.deps.Catalog
	for i, tpl := range c.Templates {
		p := c.PreviewPath(tpl)
		if p == "" {
			continue
		}
		if err := t.SendPhoto(ctx, p, fmt.Sprintf("%d. %s", i+1, tpl.Name)); err != nil {
			slog.Warn("Engine.askTemplate: failed to send preview", "template", tpl.ID, "error", err)
		}
	}

	text := msgChooseTemplate
	if t.transport.NativeButtons() {
		var b strings.Builder
		b.WriteString(text)
		b.WriteString("\n")
		for i, tpl := range c.Templates {
			fmt.Fprintf(&b, "\n%d. %s", i+1, tpl.Name)
		}
		text = b.String()
	}

	var rows [][]models.Button
	for i, tpl := range c.Templates {
		if i%2 == 0 {
			rows = append(rows, nil)
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], models.Button{Label: tpl.Name, Data: dataTemplatePrefix + tpl.ID})
	}
	rows = append(rows, []models.Button{{Label: labelSurprise, Data: dataTemplateRandom, Key: keySurprise}})
	return StateChoosingTemplate, t.Reply(ctx, text, rows...)
}

func (e *Engine) chooseTemplate(ctx context.Context, t *Turn) (State, error) {
	s := t.Session
	c := e.deps.Catalog
	in := t.Input

	var (
		tpl render.Template
		ok  bool
	)
	switch {
	case in.Kind == KindButton && in.Data == dataTemplateRandom:
		tpl, ok = c.Random(s.LastTemplateID), true
	case in.Kind == KindButton:
		tpl, ok = c.ByID(strings.TrimPrefix(in.Data, dataTemplatePrefix))
	default:
		if i, err := ParseTemplateIndex(in.Text, c.Len()); err == nil {
			tpl, ok = c.ByIndex(i)
		}
	}
	if !ok {
		return StateChoosingTemplate, t.Replyf(ctx, msgInvalidTplFmt, c.Len())
	}

	s.TemplateID = tpl.ID
	if err := t.Replyf(ctx, msgTemplatePickedFmt, tpl.Name); err != nil {
		return StateChoosingTemplate, err
	}
	if s.Regenerating {
		s.Regenerating = false
		return e.generate(ctx, t)
	}
	return e.askReview(ctx, t)
}
