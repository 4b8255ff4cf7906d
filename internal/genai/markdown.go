package genai

import (
	"regexp"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

var (
	markdownEmphasis = regexp.MustCompile("[*_`~]")
	markdownLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

// CleanMarkdown strips emphasis markers and reduces [text](url) links to their text.
func CleanMarkdown(text string) string {
	text = markdownEmphasis.ReplaceAllString(text, "")
	return markdownLink.ReplaceAllString(text, "$1")
}

// CleanResume applies CleanMarkdown to every free-text field of r.
func CleanResume(r models.Resume) models.Resume {
	out := r.Clone()
	out.Name = CleanMarkdown(out.Name)
	out.Summary = CleanMarkdown(out.Summary)
	out.AboutMe = CleanMarkdown(out.AboutMe)
	out.Address = CleanMarkdown(out.Address)
	out.Languages = CleanMarkdown(out.Languages)
	for i := range out.Skills {
		out.Skills[i].Name = CleanMarkdown(out.Skills[i].Name)
	}
	for i := range out.Experience {
		out.Experience[i] = CleanMarkdown(out.Experience[i])
	}
	for i := range out.Education {
		out.Education[i] = CleanMarkdown(out.Education[i])
	}
	return out
}
