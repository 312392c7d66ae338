package dialogue

import "regexp"

// Keyword classifiers for the per-turn algorithm. An explicit cancellation
// always wins over any other reading of a message; the other classifiers are
// consulted in stage-dependent order by the controller.
var (
	cancelRe = regexp.MustCompile(`(?i)\b(cancel|never ?mind|forget it|stop the order)\b`)
	affirmRe = regexp.MustCompile(`(?i)\b(yes|yeah|yep|sure|confirm|ok|okay)\b`)
	denyRe   = regexp.MustCompile(`(?i)\b(no|nope|don'?t)\b`)

	fullMenuRe = regexp.MustCompile(`(?i)what'?s on the menu|show me the menu|today'?s menu|full menu|what'?s available`)
	openNowRe  = regexp.MustCompile(`(?i)what'?s open|which restaurants are open|open now|open restaurants`)
	orderRe    = regexp.MustCompile(`(?i)\b(order|buy|purchase|want|get)\b`)
	addMoreRe  = regexp.MustCompile(`(?i)\b(add|also|more)\b`)
)

func isCancellation(msg string) bool { return cancelRe.MatchString(msg) }

func isAffirmative(msg string) bool {
	return !denyRe.MatchString(msg) && affirmRe.MatchString(msg)
}

func isDenial(msg string) bool { return denyRe.MatchString(msg) }

func wantsFullMenu(msg string) bool { return fullMenuRe.MatchString(msg) }

func wantsOpenRestaurants(msg string) bool { return openNowRe.MatchString(msg) }

func wantsToOrder(msg string) bool { return orderRe.MatchString(msg) }

func wantsToAddMore(msg string) bool { return addMoreRe.MatchString(msg) }
