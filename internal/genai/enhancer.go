package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// Summary styles understood by EnhanceSummary.
const (
	StyleModern   = "modern"
	StyleCreative = "creative"
)

// Section headers of the tailoring response.
const (
	tailoredSummaryHeader = "--- TAILORED SUMMARY ---"
	suggestedSkillsHeader = "--- SUGGESTED SKILLS ---"
)

const resumeWriterSystemPrompt = "You are a professional resume writer. Reply with plain text only, without markdown."

// Result is the outcome of a best-effort text operation. Value always holds
// usable text: the model output when Enhanced is true, the input otherwise.
type Result struct {
	Value    string
	Enhanced bool
}

// ListResult is Result for list-valued operations.
type ListResult struct {
	Values   []string
	Enhanced bool
}

// Tailoring is the model's suggestion for a specific job description.
type Tailoring struct {
	Summary         string
	SuggestedSkills []string
}

// Enhancer runs the résumé operations on top of a Generator. A nil generator
// is allowed; every operation then returns its input unchanged.
type Enhancer struct {
	gen Generator
}

// NewEnhancer creates an Enhancer.
func NewEnhancer(gen Generator) *Enhancer {
	return &Enhancer{gen: gen}
}

// Available reports whether a generator is configured.
func (e *Enhancer) Available() bool {
	return e != nil && e.gen != nil
}

func (e *Enhancer) generate(ctx context.Context, op, system, user string) (string, bool) {
	if !e.Available() {
		slog.Debug("Enhancer.generate: no generator configured", "op", op)
		return "", false
	}
	out, err := e.gen.GeneratePrompt(ctx, system, user)
	if err != nil {
		slog.Warn("Enhancer.generate: generation failed, keeping original", "op", op, "error", err)
		return "", false
	}
	return out, true
}

// EnhanceSummary rewrites a professional summary. The creative style asks for
// a more personal, narrative tone.
func (e *Enhancer) EnhanceSummary(ctx context.Context, text, style string) Result {
	original := Result{Value: text}
	if strings.TrimSpace(text) == "" {
		return original
	}
	var prompt string
	if style == StyleCreative {
		prompt = fmt.Sprintf("Rewrite the following into a unique, creative, and compelling professional summary for a resume (2-4 sentences max). Use a slightly more personal and narrative tone. Original text: '%s'", text)
	} else {
		prompt = fmt.Sprintf("Rewrite the following into a professional and impactful resume summary (2-4 sentences max): '%s'", text)
	}
	out, ok := e.generate(ctx, "summary", resumeWriterSystemPrompt, prompt)
	if !ok {
		return original
	}
	cleaned := strings.TrimSpace(CleanMarkdown(out))
	if cleaned == "" {
		return original
	}
	return Result{Value: cleaned, Enhanced: true}
}

// EnhanceExperiences rewrites the description part of each
// "Title, Company, Dates, Description" entry in one batch. If the model
// returns a different number of lines the originals are kept.
func (e *Enhancer) EnhanceExperiences(ctx context.Context, entries []string) ListResult {
	original := ListResult{Values: append([]string(nil), entries...)}
	if len(entries) == 0 {
		return original
	}

	var numbered strings.Builder
	for i, entry := range entries {
		fmt.Fprintf(&numbered, "%d. %s\n", i+1, experienceDescription(entry))
	}
	prompt := "Rewrite each of the following job descriptions into a strong, action-oriented bullet point for a resume. " +
		"Return a numbered list where each number corresponds to the original description. " +
		"Do not include the job title, company, or dates in your response.\n\n" + numbered.String()

	out, ok := e.generate(ctx, "experience", resumeWriterSystemPrompt, prompt)
	if !ok {
		return original
	}

	var rewritten []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rewritten = append(rewritten, CleanMarkdown(strings.TrimLeft(line, "0123456789. ")))
	}
	if len(rewritten) != len(entries) {
		slog.Warn("Enhancer.EnhanceExperiences: item count mismatch, keeping original", "want", len(entries), "got", len(rewritten))
		return original
	}

	result := make([]string, len(entries))
	for i, entry := range entries {
		parts := splitTrim(entry)
		if len(parts) > 1 {
			parts[len(parts)-1] = rewritten[i]
			result[i] = strings.Join(parts, ", ")
		} else {
			result[i] = rewritten[i]
		}
	}
	return ListResult{Values: result, Enhanced: true}
}

// GenerateAboutMe writes a short "About Me" paragraph from the collected data.
// On failure Value is empty.
func (e *Enhancer) GenerateAboutMe(ctx context.Context, r models.Resume) Result {
	data := fmt.Sprintf("Name: %s\nSummary: %s\nSkills: %s\nExperience: %s\nEducation: %s",
		r.Name, r.Summary,
		strings.Join(r.SkillNames(), ", "),
		strings.Join(r.Experience, " | "),
		strings.Join(r.Education, " | "))
	prompt := "Based on the following resume data, write a short, engaging 'About Me' section of 2-3 sentences. " +
		"Focus on the key skills and experience to create a compelling narrative. The tone should be professional but personable.\n\n" +
		"Resume Data:\n" + data + "\n\nGenerated 'About Me' Section:"

	out, ok := e.generate(ctx, "about_me", resumeWriterSystemPrompt, prompt)
	if !ok {
		return Result{}
	}
	cleaned := strings.TrimSpace(CleanMarkdown(out))
	return Result{Value: cleaned, Enhanced: cleaned != ""}
}

// TailorForJob asks for a summary rewritten for jobDescription plus up to five
// missing skills. The bool is false when the model failed or its answer lacks
// either section.
func (e *Enhancer) TailorForJob(ctx context.Context, r models.Resume, jobDescription string) (Tailoring, bool) {
	data := fmt.Sprintf("Current Summary: %s\nSkills: %s\nExperience: %s",
		r.Summary, strings.Join(r.SkillNames(), ", "), strings.Join(r.Experience, " | "))
	prompt := "Based on the user's current resume and the provided job description, perform two tasks:\n" +
		"1. Rewrite the professional summary to be perfectly tailored for the job. The new summary should be impactful and 2-4 sentences long.\n" +
		"2. Identify up to 5 crucial skills or keywords from the job description that are missing from the user's current skill list.\n\n" +
		"Return your response in a structured format with clear headings, like this:\n" +
		tailoredSummaryHeader + "\n[Your rewritten summary here]\n" +
		suggestedSkillsHeader + "\n- [Skill 1]\n- [Skill 2]\n...\n\n" +
		"User's Resume:\n" + data + "\n\nJob Description:\n" + jobDescription

	out, ok := e.generate(ctx, "tailor", "You are an expert resume assistant.", prompt)
	if !ok {
		return Tailoring{}, false
	}
	t, err := parseTailoring(out)
	if err != nil {
		slog.Warn("Enhancer.TailorForJob: unusable response", "error", err)
		return Tailoring{}, false
	}
	return t, true
}

func parseTailoring(out string) (Tailoring, error) {
	_, afterSummary, ok := strings.Cut(out, tailoredSummaryHeader)
	if !ok {
		return Tailoring{}, fmt.Errorf("missing %q", tailoredSummaryHeader)
	}
	summary, skills, ok := strings.Cut(afterSummary, suggestedSkillsHeader)
	if !ok {
		return Tailoring{}, fmt.Errorf("missing %q", suggestedSkillsHeader)
	}
	t := Tailoring{Summary: strings.TrimSpace(CleanMarkdown(strings.TrimSpace(summary)))}
	if t.Summary == "" {
		return Tailoring{}, fmt.Errorf("empty tailored summary")
	}
	for _, line := range strings.Split(skills, "\n") {
		skill := strings.TrimSpace(CleanMarkdown(strings.TrimLeft(strings.TrimSpace(line), "- ")))
		if skill != "" {
			t.SuggestedSkills = append(t.SuggestedSkills, skill)
		}
	}
	return t, nil
}

// parsedForm mirrors the JSON object requested from the model. Nulls decode
// to zero values.
type parsedForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Summary string `json:"summary"`
	Skills  []struct {
		Name   string `json:"name"`
		Rating *int   `json:"rating"`
	} `json:"skills"`
	Experience []string `json:"experience"`
	Education  []string `json:"education"`
}

// ParseResumeForm turns a filled-in form into structured data. Fields the
// model extracts take precedence; everything else comes from the local
// "Label: value" parser, which is also the fallback when the model is
// unavailable or its answer is not valid JSON.
func (e *Enhancer) ParseResumeForm(ctx context.Context, form string) (models.Resume, error) {
	local, localErr := ParseFormLocally(form)

	prompt := "From the following text, extract the user's name, email, phone number, " +
		"a professional summary, a list of skills (with a proficiency rating from 1-5 if available, otherwise default to 3), " +
		"a list of work experiences, and a list of education entries. Return the data as a JSON object with the following keys: " +
		"'name', 'email', 'phone', 'summary', 'skills' (as a list of objects with 'name' and 'rating' keys), " +
		"'experience' (as a list of strings), and 'education' (as a list of strings).\n\n" +
		"If a piece of information is not available, set its value to null.\n\n" +
		"Text to parse:\n---\n" + form + "\n---"

	out, ok := e.generate(ctx, "parse_form", "You are an expert data extraction assistant. Reply with JSON only.", prompt)
	if !ok {
		return local, localErr
	}

	var pf parsedForm
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &pf); err != nil {
		slog.Warn("Enhancer.ParseResumeForm: invalid JSON, using local parser", "error", err)
		return local, localErr
	}

	r := local
	if pf.Name != "" {
		r.Name = pf.Name
	}
	if pf.Email != "" {
		r.Email = pf.Email
	}
	if pf.Phone != "" {
		r.Phone = pf.Phone
	}
	if pf.Summary != "" {
		r.Summary = pf.Summary
	}
	if len(pf.Skills) > 0 {
		r.Skills = r.Skills[:0:0]
		for _, s := range pf.Skills {
			if strings.TrimSpace(s.Name) == "" {
				continue
			}
			rating := DefaultSkillRating
			if s.Rating != nil {
				rating = clampRating(*s.Rating)
			}
			r.Skills = append(r.Skills, models.Skill{Name: strings.TrimSpace(s.Name), Rating: rating})
		}
	}
	if len(pf.Experience) > 0 {
		r.Experience = pf.Experience
	}
	if len(pf.Education) > 0 {
		r.Education = pf.Education
	}

	r = CleanResume(r)
	if strings.TrimSpace(r.Name) == "" {
		return models.Resume{}, ErrFormIncomplete
	}
	return r, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// experienceDescription returns the last comma-separated part of an entry.
func experienceDescription(entry string) string {
	parts := splitTrim(entry)
	if len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return entry
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
