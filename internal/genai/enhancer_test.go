package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// stubGenerator returns a fixed reply and records the last user prompt.
type stubGenerator struct {
	reply      string
	err        error
	lastPrompt string
	calls      int
}

func (s *stubGenerator) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	s.lastPrompt = userPrompt
	return s.reply, s.err
}

func TestEnhanceSummary(t *testing.T) {
	ctx := context.Background()

	gen := &stubGenerator{reply: "**Driven** engineer with a record of shipping."}
	res := NewEnhancer(gen).EnhanceSummary(ctx, "i write code", StyleModern)
	assert.True(t, res.Enhanced)
	assert.Equal(t, "Driven engineer with a record of shipping.", res.Value)
	assert.NotContains(t, gen.lastPrompt, "narrative")

	NewEnhancer(gen).EnhanceSummary(ctx, "i write code", StyleCreative)
	assert.Contains(t, gen.lastPrompt, "narrative tone")

	failing := &stubGenerator{err: errors.New("quota")}
	res = NewEnhancer(failing).EnhanceSummary(ctx, "i write code", StyleModern)
	assert.False(t, res.Enhanced)
	assert.Equal(t, "i write code", res.Value)

	res = NewEnhancer(nil).EnhanceSummary(ctx, "kept", StyleModern)
	assert.Equal(t, Result{Value: "kept"}, res)
}

func TestEnhanceExperiences(t *testing.T) {
	ctx := context.Background()
	entries := []string{
		"Engineer, Acme, 2020 - 2022, wrote services",
		"Intern only",
	}

	gen := &stubGenerator{reply: "1. Built resilient services\n\n2. Supported the platform team"}
	res := NewEnhancer(gen).EnhanceExperiences(ctx, entries)
	require.True(t, res.Enhanced)
	assert.Equal(t, []string{
		"Engineer, Acme, 2020 - 2022, Built resilient services",
		"Supported the platform team",
	}, res.Values)
	assert.Contains(t, gen.lastPrompt, "1. wrote services")
	assert.Contains(t, gen.lastPrompt, "2. Intern only")

	mismatch := &stubGenerator{reply: "1. Only one line"}
	res = NewEnhancer(mismatch).EnhanceExperiences(ctx, entries)
	assert.False(t, res.Enhanced)
	assert.Equal(t, entries, res.Values)

	empty := &stubGenerator{reply: "unused"}
	res = NewEnhancer(empty).EnhanceExperiences(ctx, nil)
	assert.Empty(t, res.Values)
	assert.Zero(t, empty.calls)
}

func TestGenerateAboutMe(t *testing.T) {
	r := models.Resume{Name: "Ada", Skills: []models.Skill{{Name: "Go", Rating: 5}}, Experience: []string{"a", "b"}}
	gen := &stubGenerator{reply: "Ada builds _reliable_ systems."}
	res := NewEnhancer(gen).GenerateAboutMe(context.Background(), r)
	assert.True(t, res.Enhanced)
	assert.Equal(t, "Ada builds reliable systems.", res.Value)
	assert.Contains(t, gen.lastPrompt, "Skills: Go")
	assert.Contains(t, gen.lastPrompt, "Experience: a | b")

	res = NewEnhancer(&stubGenerator{err: errors.New("down")}).GenerateAboutMe(context.Background(), r)
	assert.Equal(t, Result{}, res)
}

func TestTailorForJob(t *testing.T) {
	reply := "Sure!\n--- TAILORED SUMMARY ---\nA *backend* engineer focused on payments.\n--- SUGGESTED SKILLS ---\n- Kafka\n- PCI DSS\n\n"
	tl, ok := NewEnhancer(&stubGenerator{reply: reply}).TailorForJob(context.Background(), models.Resume{Summary: "old"}, "Payments engineer")
	require.True(t, ok)
	assert.Equal(t, "A backend engineer focused on payments.", tl.Summary)
	assert.Equal(t, []string{"Kafka", "PCI DSS"}, tl.SuggestedSkills)

	_, ok = NewEnhancer(&stubGenerator{reply: "no headers at all"}).TailorForJob(context.Background(), models.Resume{}, "job")
	assert.False(t, ok)

	_, ok = NewEnhancer(&stubGenerator{reply: "--- TAILORED SUMMARY ---\nonly summary"}).TailorForJob(context.Background(), models.Resume{}, "job")
	assert.False(t, ok)

	_, ok = NewEnhancer(nil).TailorForJob(context.Background(), models.Resume{}, "job")
	assert.False(t, ok)
}

const filledForm = `Please copy the template below, fill in your details, and send it back in a single message.

**Template:**
Name: Ada Lovelace
Birthday: 10 December 1815
Email: ada@example.com
Phone: +44 20 1234
Web site: [Your Website URL]
Address: London
Language: English
NIC Number: 123

Experience 1:
Analyst, Babbage & Co, 1842 - 1843, Wrote the first program

Experience 2: Translator, Taylor's Memoirs, 1842, Annotated the engine paper

To add more experience entries, just add a new line like:

Education 1:
Private tuition, Home, 1830

Skills:
Mathematics, 5
Poetry
Music, 9
`

func TestParseFormLocally(t *testing.T) {
	r, err := ParseFormLocally(filledForm)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", r.Name)
	assert.Equal(t, "10 December 1815", r.Birthday)
	assert.Equal(t, "ada@example.com", r.Email)
	assert.Equal(t, "+44 20 1234", r.Phone)
	assert.Empty(t, r.Website, "placeholder should be ignored")
	assert.Equal(t, "London", r.Address)
	assert.Equal(t, []string{
		"Analyst, Babbage & Co, 1842 - 1843, Wrote the first program",
		"Translator, Taylor's Memoirs, 1842, Annotated the engine paper",
	}, r.Experience)
	assert.Equal(t, []string{"Private tuition, Home, 1830"}, r.Education)
	assert.Equal(t, []models.Skill{
		{Name: "Mathematics", Rating: 5},
		{Name: "Poetry", Rating: DefaultSkillRating},
		{Name: "Music", Rating: 5},
	}, r.Skills)

	_, err = ParseFormLocally("Name: [Your Name]\nEmail: x@y.z")
	assert.ErrorIs(t, err, ErrFormIncomplete)
}

func TestParseResumeForm(t *testing.T) {
	ctx := context.Background()

	reply := "```json\n" + `{"name": "Ada King", "email": null, "phone": "555", "summary": "Pioneer",
		"skills": [{"name": "Math", "rating": null}, {"name": "Logic", "rating": 4}],
		"experience": ["Analyst, Babbage, 1843, Notes"], "education": null}` + "\n```"
	r, err := NewEnhancer(&stubGenerator{reply: reply}).ParseResumeForm(ctx, filledForm)
	require.NoError(t, err)
	assert.Equal(t, "Ada King", r.Name)
	assert.Equal(t, "ada@example.com", r.Email, "null model field falls back to the local value")
	assert.Equal(t, "555", r.Phone)
	assert.Equal(t, "London", r.Address)
	assert.Equal(t, []models.Skill{{Name: "Math", Rating: 3}, {Name: "Logic", Rating: 4}}, r.Skills)
	assert.Equal(t, []string{"Analyst, Babbage, 1843, Notes"}, r.Experience)
	assert.Equal(t, []string{"Private tuition, Home, 1830"}, r.Education)

	r, err = NewEnhancer(&stubGenerator{reply: "not json"}).ParseResumeForm(ctx, filledForm)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", r.Name)

	_, err = NewEnhancer(nil).ParseResumeForm(ctx, "hello there")
	assert.ErrorIs(t, err, ErrFormIncomplete)
}

func TestCleanMarkdown(t *testing.T) {
	assert.Equal(t, "bold and italic code", CleanMarkdown("**bold** and _italic_ `code`"))
	assert.Equal(t, "see docs now", CleanMarkdown("see [docs](https://example.com) now"))
	assert.Equal(t, "plain", CleanMarkdown("plain"))

	r := CleanResume(models.Resume{Summary: "*hi*", Skills: []models.Skill{{Name: "~Go~", Rating: 4}}, Email: "a_b@c.d"})
	assert.Equal(t, "hi", r.Summary)
	assert.Equal(t, "Go", r.Skills[0].Name)
	assert.Equal(t, "a_b@c.d", r.Email, "emails are not cleaned")
	assert.False(t, strings.Contains(r.Summary, "*"))
}
