// Package validate holds the pure field predicates for the order flow.
// Every predicate is side-effect free: it extracts a canonical value from
// free text and reports either validity or a user-readable reason.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Result is the outcome of a single field check.
type Result struct {
	Valid  bool
	Reason string
}

func valid() Result { return Result{Valid: true} }

func invalid(reason string) Result { return Result{Reason: reason} }

var (
	digitRuns  = regexp.MustCompile(`\d+`)
	tokenSplit = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// Validator carries the configured formats. The digit length, building set
// and phone range are deployment configuration, not constants.
type Validator struct {
	RFIDDigits     int
	Buildings      []string
	PhoneMinDigits int
	PhoneMaxDigits int
}

// RFID extracts a digit sequence of exactly the configured length.
func (v *Validator) RFID(text string) (string, Result) {
	runs := digitRuns.FindAllString(text, -1)
	if len(runs) == 0 {
		return "", invalid(fmt.Sprintf(
			"No numeric RFID found. Please provide exactly %d digits.", v.RFIDDigits))
	}
	var lengths []string
	for _, run := range runs {
		if len(run) == v.RFIDDigits {
			return run, valid()
		}
		lengths = append(lengths, fmt.Sprintf("%d", len(run)))
	}
	return "", invalid(fmt.Sprintf(
		"RFID must be exactly %d digits. Found numbers with %s digits.",
		v.RFIDDigits, strings.Join(lengths, ", ")))
}

// Building matches any token in the text against the configured set,
// case-insensitively.
func (v *Validator) Building(text string) (string, Result) {
	for _, tok := range tokenSplit.Split(text, -1) {
		if tok == "" {
			continue
		}
		upper := strings.ToUpper(tok)
		for _, b := range v.Buildings {
			if upper == b {
				return b, valid()
			}
		}
	}
	return "", invalid(fmt.Sprintf(
		"Please select a valid building from: %s", strings.Join(v.Buildings, ", ")))
}

var phoneStrip = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "")

// Phone accepts a digit run whose length falls inside the configured range.
// Formatting characters and a leading country-code plus sign are stripped
// before counting.
func (v *Validator) Phone(text string) (string, Result) {
	cleaned := phoneStrip.Replace(text)
	for _, run := range digitRuns.FindAllString(cleaned, -1) {
		if len(run) >= v.PhoneMinDigits && len(run) <= v.PhoneMaxDigits {
			return run, valid()
		}
	}
	return "", invalid(fmt.Sprintf(
		"Please provide a valid phone number (%d-%d digits).",
		v.PhoneMinDigits, v.PhoneMaxDigits))
}

var negativeRequests = map[string]bool{
	"":                    true,
	"no":                  true,
	"none":                true,
	"nope":                true,
	"n/a":                 true,
	"no special requests": true,
}

// SpecialRequest never fails; negatives canonicalize to the literal "None".
func (v *Validator) SpecialRequest(text string) (string, Result) {
	trimmed := strings.TrimSpace(text)
	if negativeRequests[strings.ToLower(trimmed)] {
		return "None", valid()
	}
	return trimmed, valid()
}

// HasDigits is the pre-filter for digit-bearing fields: input with no digits
// at all is noise, not a field answer attempt.
func HasDigits(text string) bool {
	return digitRuns.MatchString(text)
}
