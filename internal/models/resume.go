package models

import "strings"

// Skill rating bounds.
const (
	MinSkillRating = 1
	MaxSkillRating = 5
)

// Skill is a named competency with a self-assessed rating.
type Skill struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

// Resume holds everything collected about the user that ends up in the
// rendered document.
type Resume struct {
	Name       string   `json:"name"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Birthday   string   `json:"birthday,omitempty"`
	Website    string   `json:"website,omitempty"`
	Address    string   `json:"address,omitempty"`
	Languages  string   `json:"languages,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	AboutMe    string   `json:"about_me,omitempty"`
	Skills     []Skill  `json:"skills,omitempty"`
	Experience []string `json:"experience,omitempty"`
	Education  []string `json:"education,omitempty"`

	// AccentColor is a CSS color value.
	AccentColor string `json:"accent_color,omitempty"`
	// PhotoPath is a local image path, empty when the user skipped the photo.
	PhotoPath string `json:"photo_path,omitempty"`
}

// Clone returns a deep copy so callers can mutate lists safely.
func (r Resume) Clone() Resume {
	out := r
	out.Skills = append([]Skill(nil), r.Skills...)
	out.Experience = append([]string(nil), r.Experience...)
	out.Education = append([]string(nil), r.Education...)
	return out
}

// SkillNames returns the skill names in order.
func (r Resume) SkillNames() []string {
	names := make([]string, 0, len(r.Skills))
	for _, s := range r.Skills {
		names = append(names, s.Name)
	}
	return names
}

// HasSkill reports whether a skill with the given name (case-insensitive) exists.
func (r Resume) HasSkill(name string) bool {
	for _, s := range r.Skills {
		if strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether nothing has been collected yet.
func (r Resume) IsEmpty() bool {
	return r.Name == "" && r.Email == "" && r.Phone == "" && r.Summary == "" &&
		len(r.Skills) == 0 && len(r.Experience) == 0 && len(r.Education) == 0
}
