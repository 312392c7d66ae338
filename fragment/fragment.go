// Package fragment defines the typed units flowing through the streaming
// response pipeline. A turn's output is a sequence of fragments: transient
// status markers emitted while a tool call is in flight, and content
// fragments that accumulate into the assistant's final answer.
package fragment

import "strings"

// Kind distinguishes transient status markers from answer content.
type Kind int

const (
	KindStatus Kind = iota
	KindContent
)

// Fragment is one streamed unit. Content fragments are append-only once
// emitted; status fragments replace whatever is currently displayed.
type Fragment struct {
	Kind Kind
	Text string
}

func Status(text string) Fragment {
	return Fragment{Kind: KindStatus, Text: text}
}

func Content(text string) Fragment {
	return Fragment{Kind: KindContent, Text: text}
}

// Status lines on the wire are single bracketed lines like
// "[Looking up 'Margherita' in the menu...]". The prefixes are a
// compatibility contract with the chat client.
var statusPrefixes = []string{"[Fetching", "[Looking up", "[Checking"}

// Encode renders a fragment for the chunked text/plain wire format.
// Status fragments are terminated with a newline so the client can
// recognize them as whole lines.
func (f Fragment) Encode() string {
	if f.Kind == KindStatus {
		return f.Text + "\n"
	}
	return f.Text
}

// Classify recovers the fragment kind from a raw wire chunk.
func Classify(chunk string) Kind {
	trimmed := strings.TrimRight(chunk, "\n")
	for _, p := range statusPrefixes {
		if strings.HasPrefix(trimmed, p) && strings.HasSuffix(trimmed, "]") {
			return KindStatus
		}
	}
	return KindContent
}

// Accumulator implements the client-visible replacement rule: a status
// fragment replaces the in-progress text, the first content fragment after
// any status fragments replaces it again, and subsequent content fragments
// append. Only content fragments contribute to the final history text.
type Accumulator struct {
	visible    strings.Builder
	content    strings.Builder
	pendingTip bool // last fragment was a status marker
}

func (a *Accumulator) Add(f Fragment) {
	switch f.Kind {
	case KindStatus:
		a.visible.Reset()
		a.visible.WriteString(f.Text)
		a.pendingTip = true
	case KindContent:
		if a.pendingTip {
			a.visible.Reset()
			a.pendingTip = false
		}
		a.visible.WriteString(f.Text)
		a.content.WriteString(f.Text)
	}
}

// Visible returns what the client should currently display.
func (a *Accumulator) Visible() string { return a.visible.String() }

// Content returns the concatenation of all content fragments. This is the
// only text that may be finalized into conversation history.
func (a *Accumulator) Content() string { return a.content.String() }

// HasContent reports whether any content fragment was accumulated.
func (a *Accumulator) HasContent() bool { return a.content.Len() > 0 }
