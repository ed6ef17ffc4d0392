package caption

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize turns raw model output into a display caption: surrounding
// whitespace and quotes removed, inner whitespace collapsed, first letter
// upper-cased and exactly one terminal mark. A period is appended unless the
// text already ends in '.', '!' or '?'. Empty input stays empty.
func Normalize(raw string) string {
	text := strings.Join(strings.Fields(raw), " ")
	text = strings.Trim(text, "\"'` ")
	if text == "" {
		return ""
	}

	r, size := utf8.DecodeRuneInString(text)
	text = string(unicode.ToUpper(r)) + text[size:]

	trimmed := strings.TrimRight(text, ".!?")
	if trimmed == "" {
		return ""
	}
	end := text[len(trimmed):]
	switch {
	case end == "":
		return trimmed + "."
	case strings.HasSuffix(end, "!"), strings.HasSuffix(end, "?"):
		return trimmed + end[len(end)-1:]
	default:
		return trimmed + "."
	}
}
