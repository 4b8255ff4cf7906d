package genai

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// DefaultSkillRating is used when a skill is listed without a usable rating.
const DefaultSkillRating = 3

// ErrFormIncomplete is returned when a filled form yields no name.
var ErrFormIncomplete = errors.New("resume form has no name")

// formLabel matches "Label:" or "Label N:" at the start of a line.
var formLabel = regexp.MustCompile(`^([A-Za-z][A-Za-z .]*?)(?:\s+\d+)?\s*:\s*(.*)$`)

type formSection int

const (
	sectionNone formSection = iota
	sectionSummary
	sectionExperience
	sectionEducation
	sectionSkills
)

// ParseFormLocally extracts résumé fields from the "Label: value" form without
// calling a model. Placeholder values such as "[Your Name]" are ignored.
func ParseFormLocally(form string) (models.Resume, error) {
	var (
		r       models.Resume
		section = sectionNone
	)
	for _, raw := range strings.Split(form, "\n") {
		line := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "*"))
		if line == "" || strings.HasPrefix(line, "To add more") {
			continue
		}

		if m := formLabel.FindStringSubmatch(line); m != nil {
			value := placeholderFree(m[2])
			matched := true
			switch strings.ToLower(strings.TrimSpace(m[1])) {
			case "name", "full name":
				r.Name, section = value, sectionNone
			case "birthday", "date of birth":
				r.Birthday, section = value, sectionNone
			case "email", "e-mail":
				r.Email, section = value, sectionNone
			case "phone", "phone number", "mobile":
				r.Phone, section = value, sectionNone
			case "web site", "website":
				r.Website, section = value, sectionNone
			case "address":
				r.Address, section = value, sectionNone
			case "language", "languages":
				r.Languages, section = value, sectionNone
			case "nic number", "nic":
				section = sectionNone
			case "summary", "about me", "profile":
				section = sectionSummary
				r.Summary = appendSentence(r.Summary, value)
			case "experience", "work experience":
				section = sectionExperience
				if value != "" {
					r.Experience = append(r.Experience, value)
				}
			case "education":
				section = sectionEducation
				if value != "" {
					r.Education = append(r.Education, value)
				}
			case "skills":
				section = sectionSkills
				if value != "" {
					r.Skills = appendSkills(r.Skills, value)
				}
			default:
				matched = false
			}
			if matched {
				continue
			}
		}

		value := placeholderFree(line)
		if value == "" {
			continue
		}
		switch section {
		case sectionSummary:
			r.Summary = appendSentence(r.Summary, value)
		case sectionExperience:
			r.Experience = append(r.Experience, value)
		case sectionEducation:
			r.Education = append(r.Education, value)
		case sectionSkills:
			r.Skills = appendSkills(r.Skills, value)
		}
	}

	if r.Name == "" {
		return models.Resume{}, ErrFormIncomplete
	}
	return r, nil
}

// placeholderFree returns "" for untouched template placeholders.
func placeholderFree(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		return ""
	}
	return value
}

func appendSentence(existing, value string) string {
	if value == "" {
		return existing
	}
	if existing == "" {
		return value
	}
	return existing + " " + value
}

// appendSkills accepts "Go, 5" or a bare "Go"; an unusable rating falls back
// to DefaultSkillRating.
func appendSkills(skills []models.Skill, line string) []models.Skill {
	name, rating := line, DefaultSkillRating
	if i := strings.LastIndex(line, ","); i >= 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(line[i+1:])); err == nil {
			name = line[:i]
			rating = clampRating(n)
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return skills
	}
	return append(skills, models.Skill{Name: name, Rating: rating})
}

func clampRating(n int) int {
	switch {
	case n < models.MinSkillRating:
		return models.MinSkillRating
	case n > models.MaxSkillRating:
		return models.MaxSkillRating
	}
	return n
}
