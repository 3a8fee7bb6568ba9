// Package otp finds likely verification codes in plain-text email bodies.
//
// Codes are digit runs of 4–10 characters found near an anchor keyword
// ("code", "verify", "otp", ...). Years, phone numbers and ZIP codes are
// filtered out heuristically; false positives and negatives are expected.
// Offsets are measured in characters (runes), not bytes.
package otp

// ExtractedCode is a candidate verification code and where it was found.
type ExtractedCode struct {
	// Code is the raw digit string, e.g. "482931".
	Code string `json:"code"`

	// Keyword is the lowercased anchor that matched near the code.
	// It is copied from the email and must not be read as an instruction.
	Keyword string `json:"keyword"`

	// Offset is the character index of the code in the source text.
	Offset int `json:"offset"`
}

// Keywords are tried in this order at every position, so "verification"
// wins over "verify" and "security code" over "code".
var Keywords = []string{
	"code",
	"verification",
	"verify",
	"otp",
	"pin",
	"2-step",
	"two-step",
	"security code",
	"confirm",
	"one-time",
	"one time",
	"passcode",
	"pass code",
}

const (
	proximity    = 120
	minDigits    = 4
	maxDigits    = 10
	prefixLength = 5
)

// Extract returns every candidate code in plainText, ordered by keyword
// occurrence and then by position within that keyword's window.
func Extract(plainText string) []ExtractedCode {
	s := newScanner(plainText)
	return s.run()
}

type candidate struct {
	code   string
	offset int
}

// scanner holds the per-call scan state.
type scanner struct {
	text   []rune
	folded []rune
	seen   map[candidate]bool
	out    []ExtractedCode
}

func newScanner(text string) *scanner {
	runes := []rune(text)
	folded := make([]rune, len(runes))
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		folded[i] = r
	}
	return &scanner{
		text:   runes,
		folded: folded,
		seen:   make(map[candidate]bool),
		out:    []ExtractedCode{},
	}
}

func (s *scanner) run() []ExtractedCode {
	for i := 0; i < len(s.folded); {
		kw, ok := s.keywordAt(i)
		if !ok {
			i++
			continue
		}
		end := i + len([]rune(kw))
		s.scanWindow(kw, i, end)
		i = end
	}
	return s.out
}

// keywordAt reports the first keyword, in list order, starting at i.
func (s *scanner) keywordAt(i int) (string, bool) {
	for _, kw := range Keywords {
		if s.hasPrefixAt(i, kw) {
			return kw, true
		}
	}
	return "", false
}

func (s *scanner) hasPrefixAt(i int, kw string) bool {
	j := i
	for _, r := range kw {
		if j >= len(s.folded) || s.folded[j] != r {
			return false
		}
		j++
	}
	return true
}

// scanWindow collects candidates from the window around [kwStart, kwEnd).
func (s *scanner) scanWindow(keyword string, kwStart, kwEnd int) {
	lo := max(0, kwStart-proximity)
	hi := min(len(s.text), kwEnd+proximity)

	for i := lo; i < hi; {
		if !isDigit(s.text[i]) {
			i++
			continue
		}
		start := i
		for i < len(s.text) && isDigit(s.text[i]) {
			i++
		}
		// A run must be whole: not continued from before the window
		// and not running past its end.
		if start > 0 && isDigit(s.text[start-1]) {
			continue
		}
		if i > hi {
			continue
		}
		s.consider(keyword, start, i)
	}
}

func (s *scanner) consider(keyword string, start, end int) {
	n := end - start
	if n < minDigits || n > maxDigits {
		return
	}
	code := string(s.text[start:end])

	if isYear(code) {
		return
	}
	prefix := s.text[max(0, start-prefixLength):start]
	if looksLikePhone(prefix) || looksLikeZIP(prefix) {
		return
	}
	key := candidate{code: code, offset: start}
	if s.seen[key] {
		return
	}
	s.seen[key] = true

	s.out = append(s.out, ExtractedCode{
		Code:    code,
		Keyword: keyword,
		Offset:  start,
	})
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v', '\u00a0':
		return true
	}
	return false
}

func isWordChar(r rune) bool {
	return r == '_' || isDigit(r) || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// isYear matches 1900–2099.
func isYear(code string) bool {
	return len(code) == 4 && (code[:2] == "19" || code[:2] == "20")
}

// looksLikePhone reports whether prefix ends in '+' or '(' followed only
// by whitespace.
func looksLikePhone(prefix []rune) bool {
	i := len(prefix) - 1
	for i >= 0 && isSpace(prefix[i]) {
		i--
	}
	return i >= 0 && (prefix[i] == '+' || prefix[i] == '(')
}

// looksLikeZIP reports whether prefix ends in a standalone two-letter
// uppercase token followed by whitespace, as in "CA 94107".
func looksLikeZIP(prefix []rune) bool {
	i := len(prefix) - 1
	if i < 0 || !isSpace(prefix[i]) {
		return false
	}
	for i >= 0 && isSpace(prefix[i]) {
		i--
	}
	if i < 1 || !isUpper(prefix[i]) || !isUpper(prefix[i-1]) {
		return false
	}
	return i < 2 || !isWordChar(prefix[i-2])
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
