package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

// Candidate is one noun phrase that may reference a menu item, with the
// quantity the user attached to it. Extraction is a parsing convenience
// only: every candidate must still be resolved through LookupItem before
// anything is asserted about it.
type Candidate struct {
	Text     string
	Quantity int
}

// Request frames an item reference can appear in. First match wins. The
// capture class admits commas and ampersands so list phrases survive intact
// for splitting.
var framePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)is ([\w\s,&]+?) available`),
	regexp.MustCompile(`(?i)do you have ([\w\s,&]+)`),
	regexp.MustCompile(`(?i)price of ([\w\s,&]+)`),
	regexp.MustCompile(`(?i)how much (?:is|are)(?: the)? ([\w\s,&]+)`),
	regexp.MustCompile(`(?i)can i (?:order|get|have|buy) ([\w\s,&]+)`),
	regexp.MustCompile(`(?i)i(?:'d| would)? ?(?:like|want|will have) (?:to (?:order|get|have|buy) )?([\w\s,&]+)`),
	regexp.MustCompile(`(?i)(?:^|\s)add ([\w\s,&]+)`),
	regexp.MustCompile(`(?i)(?:^|\s)order ([\w\s,&]+)`),
	regexp.MustCompile(`(?i)(?:^|\s)buy ([\w\s,&]+)`),
	regexp.MustCompile(`(?i)(?:^|\s)get ([\w\s,&]+)`),
	regexp.MustCompile(`(?i)(?:^|\s)have ([\w\s,&]+)`),
}

// Generic dish-class words users tack onto item names ("pepperoni pizza").
// Stripped from the end of a candidate unless the candidate is nothing but
// the class word itself.
var categoryWords = map[string]bool{
	"pizza": true, "wings": true, "bowl": true, "sandwich": true,
	"wrap": true, "salad": true, "soup": true, "burger": true,
	"fries": true, "chips": true, "drink": true, "beverage": true,
	"coffee": true, "tea": true, "juice": true, "soda": true,
	"dessert": true, "cake": true, "cookie": true, "bread": true,
	"roll": true, "bun": true,
}

var quantityWords = map[string]int{
	"a": 1, "an": 1, "some": 1, "one": 1, "two": 2, "three": 3,
	"four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8,
	"nine": 9, "ten": 10,
}

// Pronouns and fillers that survive frame capture but reference nothing.
var fillerCandidates = map[string]bool{
	"it": true, "that": true, "this": true, "them": true,
	"one": true, "something": true, "anything": true, "more": true,
}

var (
	partSplit   = regexp.MustCompile(`(?i),|\sand\s|&|\n`)
	punctuation = regexp.MustCompile(`[?!.]+`)
	leadQty     = regexp.MustCompile(`^(\d+|[a-z]+)\s+(.+)$`)
)

// ExtractCandidates pulls item-reference candidates out of a chat message.
// Conjunctions and commas yield independent candidates so that every noun
// phrase is tried against the catalog on its own.
func ExtractCandidates(message string) []Candidate {
	cleaned := punctuation.ReplaceAllString(message, "")

	var phrase string
	for _, pat := range framePatterns {
		if m := pat.FindStringSubmatch(cleaned); m != nil {
			phrase = m[1]
			break
		}
	}
	if phrase == "" {
		return nil
	}

	var candidates []Candidate
	for _, part := range partSplit.Split(phrase, -1) {
		if c, ok := parsePart(part); ok {
			candidates = append(candidates, c)
		}
	}
	return candidates
}

func parsePart(part string) (Candidate, bool) {
	text := strings.TrimSpace(strings.ToLower(part))
	text = strings.TrimSuffix(text, " please")

	quantity := 1
	if m := leadQty.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			quantity = n
			text = m[2]
		} else if n, ok := quantityWords[m[1]]; ok {
			quantity = n
			text = m[2]
		}
	}
	text = strings.TrimPrefix(text, "the ")
	text = stripCategory(strings.TrimSpace(text))

	if text == "" || fillerCandidates[text] {
		return Candidate{}, false
	}
	return Candidate{Text: text, Quantity: quantity}, true
}

func stripCategory(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return text
	}
	last := strings.TrimSuffix(tokens[len(tokens)-1], "s")
	if categoryWords[last] || categoryWords[tokens[len(tokens)-1]] {
		return strings.Join(tokens[:len(tokens)-1], " ")
	}
	return text
}
