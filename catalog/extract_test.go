package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(cs []Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Text)
	}
	return out
}

func TestExtractSingleItem(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"Is Margherita available?", "margherita"},
		{"Do you have lemonade?", "lemonade"},
		{"What's the price of shawarma?", "shawarma"},
		{"How much is the caesar salad?", "caesar"},
		{"Can I order a pepperoni pizza?", "pepperoni"},
		{"I'd like to order falafel", "falafel"},
		{"I want hummus please", "hummus"},
		{"order chicken wings", "chicken"},
	}
	for _, tt := range tests {
		got := ExtractCandidates(tt.message)
		require.Len(t, got, 1, "message %q", tt.message)
		assert.Equal(t, tt.want, got[0].Text, "message %q", tt.message)
	}
}

func TestExtractConjunction(t *testing.T) {
	got := ExtractCandidates("Can I order a pepperoni and margherita pizza?")
	require.Len(t, got, 2)
	assert.Equal(t, []string{"pepperoni", "margherita"}, texts(got))
}

func TestExtractCommaList(t *testing.T) {
	got := ExtractCandidates("I want falafel, hummus and lemonade")
	assert.Equal(t, []string{"falafel", "hummus", "lemonade"}, texts(got))
}

func TestExtractQuantities(t *testing.T) {
	got := ExtractCandidates("Can I order 2 pepperoni pizzas and three lemonades")
	require.Len(t, got, 2)
	assert.Equal(t, "pepperoni", got[0].Text)
	assert.Equal(t, 2, got[0].Quantity)
	// Word quantities count too.
	assert.Equal(t, 3, got[1].Quantity)
}

func TestExtractDefaultQuantityIsOne(t *testing.T) {
	got := ExtractCandidates("Do you have shawarma?")
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Quantity)
}

func TestExtractKeepsLoneCategoryWord(t *testing.T) {
	// "pizza" alone is a real question; only trailing class words on a
	// longer phrase are stripped.
	got := ExtractCandidates("Do you have pizza?")
	require.Len(t, got, 1)
	assert.Equal(t, "pizza", got[0].Text)
}

func TestExtractStripsArticlesAndFillers(t *testing.T) {
	got := ExtractCandidates("Can I get the caesar salad?")
	require.Len(t, got, 1)
	assert.Equal(t, "caesar", got[0].Text)

	// Pronouns never become candidates.
	assert.Empty(t, ExtractCandidates("Can I order it?"))
	assert.Empty(t, ExtractCandidates("I want that"))
}

func TestExtractNoFrame(t *testing.T) {
	assert.Empty(t, ExtractCandidates("Hello!"))
	assert.Empty(t, ExtractCandidates("What time do you close?"))
	assert.Empty(t, ExtractCandidates(""))
}
