// Package appcat manages the YAML-based app category registry. Categories
// feed the mood engine's judgment about what the user is doing, not any
// blocking or filtering.
package appcat

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category labels a class of applications.
type Category string

const (
	CategoryEntertainment Category = "entertainment"
	CategoryDevelopment   Category = "development"
	CategoryCommunication Category = "communication"
	CategoryProductivity  Category = "productivity"
	CategoryBrowser       Category = "browser"
	CategoryUnknown       Category = ""
)

// Rule maps an app-name substring to a category. Matching is
// case-insensitive; the first matching rule wins.
type Rule struct {
	Match    string   `yaml:"match"`
	Category Category `yaml:"category"`
}

// Config is the top-level YAML structure.
type Config struct {
	Apps []Rule `yaml:"apps"`
}

// defaultRules cover the common suspects out of the box. User rules loaded
// from the config file take precedence.
var defaultRules = []Rule{
	{Match: "youtube", Category: CategoryEntertainment},
	{Match: "netflix", Category: CategoryEntertainment},
	{Match: "twitch", Category: CategoryEntertainment},
	{Match: "tiktok", Category: CategoryEntertainment},
	{Match: "reddit", Category: CategoryEntertainment},
	{Match: "twitter", Category: CategoryEntertainment},
	{Match: "instagram", Category: CategoryEntertainment},
	{Match: "discord", Category: CategoryEntertainment},
	{Match: "steam", Category: CategoryEntertainment},
	{Match: "spotify", Category: CategoryEntertainment},
	{Match: "code", Category: CategoryDevelopment},
	{Match: "xcode", Category: CategoryDevelopment},
	{Match: "goland", Category: CategoryDevelopment},
	{Match: "intellij", Category: CategoryDevelopment},
	{Match: "terminal", Category: CategoryDevelopment},
	{Match: "iterm", Category: CategoryDevelopment},
	{Match: "slack", Category: CategoryCommunication},
	{Match: "zoom", Category: CategoryCommunication},
	{Match: "mail", Category: CategoryCommunication},
	{Match: "messages", Category: CategoryCommunication},
	{Match: "telegram", Category: CategoryCommunication},
	{Match: "notion", Category: CategoryProductivity},
	{Match: "obsidian", Category: CategoryProductivity},
	{Match: "safari", Category: CategoryBrowser},
	{Match: "chrome", Category: CategoryBrowser},
	{Match: "firefox", Category: CategoryBrowser},
	{Match: "arc", Category: CategoryBrowser},
}

// Registry holds ordered categorization rules.
type Registry struct {
	rules []Rule
}

// Load reads the YAML file at path and returns a Registry with the file's
// rules ahead of the built-in defaults. If the file does not exist, Load
// returns a defaults-only Registry (not an error).
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{rules: defaultRules}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	rules := make([]Rule, 0, len(cfg.Apps)+len(defaultRules))
	rules = append(rules, cfg.Apps...)
	rules = append(rules, defaultRules...)
	return &Registry{rules: rules}, nil
}

// Categorize returns the category for an app name, or CategoryUnknown when
// no rule matches.
func (r *Registry) Categorize(appName string) Category {
	name := strings.ToLower(appName)
	for _, rule := range r.rules {
		if rule.Match != "" && strings.Contains(name, strings.ToLower(rule.Match)) {
			return rule.Category
		}
	}
	return CategoryUnknown
}

// Categories returns the distinct categories known to the registry, sorted.
func (r *Registry) Categories() []Category {
	seen := make(map[Category]struct{})
	for _, rule := range r.rules {
		seen[rule.Category] = struct{}{}
	}
	out := make([]Category, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
