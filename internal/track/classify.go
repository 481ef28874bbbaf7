// Package track classifies active-window snapshots into categories and
// accounts the elapsed time of each category as contiguous slices.
package track

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// OptString is an optional lower-cased string. The explicit presence flag
// keeps "no value" distinct from an empty value.
type OptString struct {
	value string
	ok    bool
}

// StringOf wraps a present value, lower-casing it.
func StringOf(s string) OptString {
	return OptString{value: strings.ToLower(s), ok: true}
}

// NoString is the absent value.
func NoString() OptString {
	return OptString{}
}

func (o OptString) Get() (string, bool) {
	return o.value, o.ok
}

func (o OptString) Contains(sub string) bool {
	return o.ok && strings.Contains(o.value, sub)
}

func (o OptString) Equals(s string) bool {
	return o.ok && o.value == s
}

func (o OptString) Matches(re *regexp.Regexp) bool {
	return o.ok && re.MatchString(o.value)
}

// WindowInfo is a snapshot of the focused window's identity. Produced once per
// focus change; consumed synchronously by the tracker.
type WindowInfo struct {
	Title OptString
	Class OptString
}

func (w WindowInfo) String() string {
	title, _ := w.Title.Get()
	class, _ := w.Class.Get()
	return fmt.Sprintf("class=%q title=%q", class, title)
}

// Rule pairs a category with a predicate. Rule order is significant: the
// classifier scans the list and the first accepting rule wins.
type Rule struct {
	Category string
	match    func(WindowInfo) bool
}

func NewRule(category string, match func(WindowInfo) bool) Rule {
	return Rule{Category: category, match: match}
}

// RuleSpec is the configuration form of a rule. All present clauses must
// match (AND); values are matched against the lower-cased window fields. A
// spec with no clause matches every window, which makes a trailing catch-all
// category possible.
type RuleSpec struct {
	Category      string `mapstructure:"category" yaml:"category"`
	TitleContains string `mapstructure:"title_contains" yaml:"title_contains,omitempty"`
	TitleEquals   string `mapstructure:"title_equals" yaml:"title_equals,omitempty"`
	TitleRegex    string `mapstructure:"title_regex" yaml:"title_regex,omitempty"`
	ClassContains string `mapstructure:"class_contains" yaml:"class_contains,omitempty"`
	ClassEquals   string `mapstructure:"class_equals" yaml:"class_equals,omitempty"`
	ClassRegex    string `mapstructure:"class_regex" yaml:"class_regex,omitempty"`
}

// CompileRules turns ordered rule specs into ordered rules.
func CompileRules(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		if spec.Category == "" {
			return nil, fmt.Errorf("rule %d: category must not be empty", i+1)
		}
		rule, err := compileRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, spec.Category, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func compileRule(spec RuleSpec) (Rule, error) {
	var clauses []func(WindowInfo) bool

	if s := strings.ToLower(spec.TitleContains); s != "" {
		clauses = append(clauses, func(w WindowInfo) bool { return w.Title.Contains(s) })
	}
	if s := strings.ToLower(spec.TitleEquals); s != "" {
		clauses = append(clauses, func(w WindowInfo) bool { return w.Title.Equals(s) })
	}
	if spec.TitleRegex != "" {
		re, err := regexp.Compile(spec.TitleRegex)
		if err != nil {
			return Rule{}, fmt.Errorf("invalid title_regex: %w", err)
		}
		clauses = append(clauses, func(w WindowInfo) bool { return w.Title.Matches(re) })
	}
	if s := strings.ToLower(spec.ClassContains); s != "" {
		clauses = append(clauses, func(w WindowInfo) bool { return w.Class.Contains(s) })
	}
	if s := strings.ToLower(spec.ClassEquals); s != "" {
		clauses = append(clauses, func(w WindowInfo) bool { return w.Class.Equals(s) })
	}
	if spec.ClassRegex != "" {
		re, err := regexp.Compile(spec.ClassRegex)
		if err != nil {
			return Rule{}, fmt.Errorf("invalid class_regex: %w", err)
		}
		clauses = append(clauses, func(w WindowInfo) bool { return w.Class.Matches(re) })
	}

	return NewRule(spec.Category, func(w WindowInfo) bool {
		for _, clause := range clauses {
			if !clause(w) {
				return false
			}
		}
		return true
	}), nil
}

// Classifier resolves window snapshots to categories through an ordered rule
// list.
type Classifier struct {
	rules []Rule
}

func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the category of the first matching rule. ok=false means no
// rule matched: the window is uncategorized.
func (c *Classifier) Classify(w WindowInfo) (category string, ok bool) {
	for _, rule := range c.rules {
		if rule.match(w) {
			return rule.Category, true
		}
	}
	return "", false
}

// Categories returns the sorted set of category names known to the rules.
func (c *Classifier) Categories() []string {
	seen := make(map[string]struct{}, len(c.rules))
	var categories []string
	for _, rule := range c.rules {
		if _, dup := seen[rule.Category]; dup {
			continue
		}
		seen[rule.Category] = struct{}{}
		categories = append(categories, rule.Category)
	}
	sort.Strings(categories)
	return categories
}
