package domain

import "strings"

// Category groups incidents for routing and recurrence detection.
type Category string

const (
	CategoryNetwork     Category = "NETWORK"
	CategoryAccess      Category = "ACCESS"
	CategoryHardware    Category = "HARDWARE"
	CategorySoftware    Category = "SOFTWARE"
	CategoryPedagogical Category = "PEDAGOGICAL"
	CategoryGeneral     Category = "GENERAL"
)

// ClassificationInput is the free text a classifier inspects.
type ClassificationInput struct {
	Title       string
	Description string
}

type classificationRule struct {
	category Category
	keywords []string
}

// Rules are evaluated in order; the first rule with a matching keyword wins.
var classificationRules = []classificationRule{
	{CategoryPedagogical, []string{"pedagog", "course", "classroom", "moodle", "lecture", "exam", "student"}},
	{CategoryAccess, []string{"password", "login", "log in", "account", "locked out", "permission", "mfa"}},
	{CategoryNetwork, []string{"network", "wifi", "wi-fi", "vpn", "internet", "dns", "ethernet"}},
	{CategoryHardware, []string{"printer", "laptop", "monitor", "screen", "keyboard", "projector", "hardware"}},
	{CategorySoftware, []string{"install", "software", "application", "license", "update", "crash"}},
}

// ClassifyIncident maps free text to a category using case-insensitive substring rules.
func ClassifyIncident(input ClassificationInput) Category {
	text := strings.ToLower(input.Title + " " + input.Description)
	for _, rule := range classificationRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(text, keyword) {
				return rule.category
			}
		}
	}
	return CategoryGeneral
}

// ParseCategory normalizes user supplied categories, returning false for unknown values.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(raw)))
	switch c {
	case CategoryNetwork, CategoryAccess, CategoryHardware, CategorySoftware, CategoryPedagogical, CategoryGeneral:
		return c, true
	}
	return "", false
}
