package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, specs ...RuleSpec) *Classifier {
	t.Helper()
	rules, err := CompileRules(specs)
	require.NoError(t, err)
	return NewClassifier(rules...)
}

func TestRuleOrderDecidesTies(t *testing.T) {
	info := WindowInfo{Title: StringOf("ide-something"), Class: StringOf("firefox")}

	// Both rules match; the first listed wins regardless of specificity.
	c := mustCompile(t,
		RuleSpec{Category: "browser", ClassEquals: "firefox"},
		RuleSpec{Category: "work", TitleContains: "ide"},
	)
	category, ok := c.Classify(info)
	require.True(t, ok)
	assert.Equal(t, "browser", category)

	reversed := mustCompile(t,
		RuleSpec{Category: "work", TitleContains: "ide"},
		RuleSpec{Category: "browser", ClassEquals: "firefox"},
	)
	category, ok = reversed.Classify(info)
	require.True(t, ok)
	assert.Equal(t, "work", category)
}

func TestNoMatchIsUncategorized(t *testing.T) {
	c := mustCompile(t, RuleSpec{Category: "work", ClassEquals: "editor"})

	category, ok := c.Classify(WindowInfo{Class: StringOf("terminal")})
	assert.False(t, ok)
	assert.Empty(t, category)
}

func TestClausesCombineWithAnd(t *testing.T) {
	c := mustCompile(t, RuleSpec{Category: "review", ClassEquals: "firefox", TitleContains: "pull request"})

	_, ok := c.Classify(WindowInfo{Class: StringOf("firefox"), Title: StringOf("news")})
	assert.False(t, ok)

	category, ok := c.Classify(WindowInfo{Class: StringOf("firefox"), Title: StringOf("Pull Request #7")})
	require.True(t, ok)
	assert.Equal(t, "review", category)
}

func TestMatchingIsCaseInsensitive(t *testing.T) {
	c := mustCompile(t, RuleSpec{Category: "browser", ClassEquals: "FIREFOX"})

	category, ok := c.Classify(WindowInfo{Class: StringOf("Firefox")})
	require.True(t, ok)
	assert.Equal(t, "browser", category)
}

func TestEmptySpecIsCatchAll(t *testing.T) {
	c := mustCompile(t,
		RuleSpec{Category: "work", ClassEquals: "editor"},
		RuleSpec{Category: "other"},
	)

	category, ok := c.Classify(WindowInfo{})
	require.True(t, ok)
	assert.Equal(t, "other", category)
}

func TestAbsentFieldNeverMatches(t *testing.T) {
	c := mustCompile(t, RuleSpec{Category: "browser", ClassContains: "fire"})

	_, ok := c.Classify(WindowInfo{Title: StringOf("firefox")})
	assert.False(t, ok)
}

func TestRegexClauses(t *testing.T) {
	c := mustCompile(t, RuleSpec{Category: "mail", TitleRegex: `inbox \(\d+\)`})

	category, ok := c.Classify(WindowInfo{Title: StringOf("Inbox (42) - Mail")})
	require.True(t, ok)
	assert.Equal(t, "mail", category)
}

func TestCompileRejectsInvalidSpecs(t *testing.T) {
	_, err := CompileRules([]RuleSpec{{Category: "", ClassEquals: "x"}})
	assert.Error(t, err)

	_, err = CompileRules([]RuleSpec{{Category: "bad", TitleRegex: "("}})
	assert.Error(t, err)
}

func TestCategoriesSortedUnique(t *testing.T) {
	c := mustCompile(t,
		RuleSpec{Category: "work", ClassEquals: "editor"},
		RuleSpec{Category: "browser", ClassEquals: "firefox"},
		RuleSpec{Category: "work", ClassEquals: "konsole"},
	)
	assert.Equal(t, []string{"browser", "work"}, c.Categories())
}
