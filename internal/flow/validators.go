package flow

import (
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"unicode"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// DoneSentinel finishes a list step. It is matched exactly, case included.
const DoneSentinel = "Done"

var (
	ErrInvalidSkill    = errors.New("expected \"Skill Name, Rating\" with a rating from 1 to 5")
	ErrInvalidContacts = errors.New("expected \"email, phone\"")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidColor    = errors.New("unknown accent colour")
	ErrInvalidTemplate = errors.New("template number out of range")
	ErrInvalidPersonal = errors.New("expected \"name, email, phone\"")
)

// ValidationError is a rejected user input.
type ValidationError struct {
	Field string
	Input string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, input string, err error) *ValidationError {
	return &ValidationError{Field: field, Input: input, Err: err}
}

// AccentColor is one of the selectable résumé colours.
type AccentColor struct {
	Name string
	Hex  string
}

// AccentColors are offered in this order.
var AccentColors = []AccentColor{
	{Name: "Blue", Hex: "#3498db"},
	{Name: "Green", Hex: "#2ecc71"},
	{Name: "Red", Hex: "#e74c3c"},
	{Name: "Purple", Hex: "#8e44ad"},
}

// ParseSkill parses "Skill Name, Rating". The rating must be an integer in
// [models.MinSkillRating, models.MaxSkillRating].
func ParseSkill(text string) (models.Skill, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return models.Skill{}, invalid("skill", text, ErrInvalidSkill)
	}
	name := strings.TrimSpace(parts[0])
	rating, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if name == "" || err != nil || rating < models.MinSkillRating || rating > models.MaxSkillRating {
		return models.Skill{}, invalid("skill", text, ErrInvalidSkill)
	}
	return models.Skill{Name: name, Rating: rating}, nil
}

// ParseContacts parses "email, phone".
func ParseContacts(text string) (email, phone string, err error) {
	parts := splitFields(text)
	if len(parts) != 2 {
		return "", "", invalid("contacts", text, ErrInvalidContacts)
	}
	if email, err = validEmail(parts[0]); err != nil {
		return "", "", err
	}
	if phone, err = validPhone(parts[1]); err != nil {
		return "", "", err
	}
	return email, phone, nil
}

// ParsePersonal parses "name, email, phone".
func ParsePersonal(text string) (name, email, phone string, err error) {
	parts := splitFields(text)
	if len(parts) != 3 || parts[0] == "" {
		return "", "", "", invalid("personal", text, ErrInvalidPersonal)
	}
	if email, err = validEmail(parts[1]); err != nil {
		return "", "", "", err
	}
	if phone, err = validPhone(parts[2]); err != nil {
		return "", "", "", err
	}
	return parts[0], email, phone, nil
}

func validEmail(s string) (string, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s[strings.LastIndex(s, "@")+1:], ".") {
		return "", invalid("email", s, ErrInvalidEmail)
	}
	return s, nil
}

// validPhone accepts digits with common separators and an optional leading
// plus; at least 7 digits are required.
func validPhone(s string) (string, error) {
	digits := 0
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", invalid("phone", s, ErrInvalidPhone)
		}
	}
	if digits < 7 || digits > 15 {
		return "", invalid("phone", s, ErrInvalidPhone)
	}
	return s, nil
}

// ParseColor matches a colour name case-insensitively.
func ParseColor(text string) (AccentColor, error) {
	name := strings.TrimSpace(text)
	for _, c := range AccentColors {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return AccentColor{}, invalid("color", text, ErrInvalidColor)
}

// ParseTemplateIndex parses a 1-based template number in [1, n].
func ParseTemplateIndex(text string, n int) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || i < 1 || i > n {
		return 0, invalid("template", text, ErrInvalidTemplate)
	}
	return i, nil
}

// IsDone reports whether text is the list terminator.
func IsDone(text string) bool {
	return strings.TrimSpace(text) == DoneSentinel
}

// IsKeep reports whether text asks to keep the current value.
func IsKeep(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "skip":
		return true
	}
	return false
}

func splitFields(text string) []string {
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
