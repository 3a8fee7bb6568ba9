// Package sanitize converts untrusted HTML email bodies into plain text.
//
// The conversion is a fixed sequence of regular-expression passes rather than
// a DOM parse. Malformed markup is handled best-effort: an unterminated
// <script> or <style> block swallows the rest of the input, and an
// unterminated trailing tag is dropped.
package sanitize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b.*?(?:</script\s*>|\z)`)
	styleBlock  = regexp.MustCompile(`(?is)<style\b.*?(?:</style\s*>|\z)`)

	lineBreakTag = regexp.MustCompile(`(?i)<br\b[^>]*>`)
	blockOpenTag = regexp.MustCompile(`(?i)<(?:p|div|tr|li|h[1-6]|blockquote)\b[^>]*>`)

	// anyTag also matches a tag-like fragment left open at end of input.
	anyTag = regexp.MustCompile(`<[^>]*>|<[A-Za-z/!?][^>]*\z`)

	entity = regexp.MustCompile(`(?i)&(?:(amp|lt|gt|quot|apos|nbsp)|#([0-9]+)|#x([0-9a-f]+));`)

	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	spaceAfterBreak = regexp.MustCompile(`\n `)
	spaceBefore     = regexp.MustCompile(` \n`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

var namedEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"apos": "'",
	"nbsp": " ",
}

// HTML returns a plain-text rendering of html. It never fails; an empty
// input yields an empty string.
func HTML(html string) string {
	if html == "" {
		return ""
	}

	text := scriptBlock.ReplaceAllString(html, "")
	text = styleBlock.ReplaceAllString(text, "")

	text = lineBreakTag.ReplaceAllString(text, "\n")
	text = blockOpenTag.ReplaceAllString(text, "\n")

	text = anyTag.ReplaceAllString(text, "")

	// Entities are decoded only after tags are gone so that encoded
	// markup such as &lt;b&gt; survives as literal text.
	text = decodeEntities(text)

	return collapseWhitespace(text)
}

// decodeEntities decodes the supported named entities and numeric
// character references in a single pass, so a decoded '&' never starts
// a second entity.
func decodeEntities(text string) string {
	return entity.ReplaceAllStringFunc(text, func(m string) string {
		sub := entity.FindStringSubmatch(m)
		switch {
		case sub[1] != "":
			return namedEntities[strings.ToLower(sub[1])]
		case sub[2] != "":
			return codePoint(sub[2], 10)
		default:
			return codePoint(sub[3], 16)
		}
	})
}

// codePoint maps a numeric reference to its character. Values that are not
// valid Unicode scalar values become U+FFFD.
func codePoint(digits string, base int) string {
	n, err := strconv.ParseUint(digits, base, 32)
	if err != nil || n == 0 {
		return string(utf8.RuneError)
	}
	r := rune(n)
	if !utf8.ValidRune(r) {
		return string(utf8.RuneError)
	}
	return string(r)
}

func collapseWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = horizontalSpace.ReplaceAllString(text, " ")
	text = spaceAfterBreak.ReplaceAllString(text, "\n")
	text = spaceBefore.ReplaceAllString(text, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// Truncate shortens text to at most max characters, replacing the last
// kept character with an ellipsis when anything was cut.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max-1]) + "…"
}
