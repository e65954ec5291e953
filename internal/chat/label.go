package chat

import (
	"strings"

	"github.com/rivo/uniseg"
)

// DefaultLabel is shown for chats with nothing better to show.
const DefaultLabel = "New Chat"

// labelLength is the clip length, in user-perceived characters.
const labelLength = 50

// Label derives the display label: explicit name, then prompt setting, then
// the first message with content, then the cached label, then DefaultLabel.
func (s *Session) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Settings.Prompt != "" {
		clipped, _ := clip(s.Settings.Prompt, labelLength)
		return clipped
	}
	for _, m := range s.Messages {
		if !m.HasContent() {
			continue
		}
		clipped, cut := clip(m.Content, labelLength)
		if cut {
			clipped += "…"
		}
		return clipped
	}
	if s.TemporaryName != "" {
		return s.TemporaryName
	}
	return DefaultLabel
}

// RefreshLabel recomputes the label and caches it as the temporary name.
func (s *Session) RefreshLabel() string {
	label := s.Label()
	if s.Name == "" {
		s.TemporaryName = label
	}
	return label
}

// clip returns the first n grapheme clusters of text and whether anything
// was cut.
func clip(text string, n int) (string, bool) {
	var b strings.Builder
	g := uniseg.NewGraphemes(text)
	count := 0
	for g.Next() {
		if count == n {
			return b.String(), true
		}
		b.WriteString(g.Str())
		count++
	}
	return b.String(), false
}
