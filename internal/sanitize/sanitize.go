package sanitize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var entityPattern = regexp.MustCompile(`&(#[xX]?[0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)

// namedEntities covers the entities the upstream listing APIs actually emit:
// markup escapes, typographic punctuation, accented Latin letters, and a few
// currency/legal symbols. Anything else passes through untouched.
var namedEntities = map[string]string{
	"amp":    "&",
	"lt":     "<",
	"gt":     ">",
	"quot":   `"`,
	"apos":   "'",
	"nbsp":   " ",
	"ndash":  "–",
	"mdash":  "—",
	"lsquo":  "‘",
	"rsquo":  "’",
	"ldquo":  "“",
	"rdquo":  "”",
	"laquo":  "«",
	"raquo":  "»",
	"hellip": "…",
	"agrave": "à",
	"acirc":  "â",
	"auml":   "ä",
	"ccedil": "ç",
	"eacute": "é",
	"egrave": "è",
	"ecirc":  "ê",
	"euml":   "ë",
	"icirc":  "î",
	"iuml":   "ï",
	"ocirc":  "ô",
	"ouml":   "ö",
	"ugrave": "ù",
	"ucirc":  "û",
	"uuml":   "ü",
	"Agrave": "À",
	"Ccedil": "Ç",
	"Eacute": "É",
	"Egrave": "È",
	"Ecirc":  "Ê",
	"Ocirc":  "Ô",
	"deg":    "°",
	"euro":   "€",
	"pound":  "£",
	"copy":   "©",
	"reg":    "®",
	"trade":  "™",
}

// DecodeEntities replaces numeric character references and known named
// entities in raw. Unknown entities and invalid code points are left as-is.
func DecodeEntities(raw string) string {
	if !strings.Contains(raw, "&") {
		return raw
	}

	return entityPattern.ReplaceAllStringFunc(raw, func(match string) string {
		body := match[1 : len(match)-1]
		if strings.HasPrefix(body, "#") {
			return decodeNumericReference(match, body[1:])
		}
		if replacement, ok := namedEntities[body]; ok {
			return replacement
		}
		return match
	})
}

func decodeNumericReference(match, digits string) string {
	base := 10
	if len(digits) > 0 && (digits[0] == 'x' || digits[0] == 'X') {
		base = 16
		digits = digits[1:]
	}

	code, err := strconv.ParseInt(digits, base, 32)
	if err != nil || code <= 0 || code > int64(utf8.MaxRune) || !utf8.ValidRune(rune(code)) {
		return match
	}
	return string(rune(code))
}

// Text normalizes an arbitrary source-provided value into a usable string.
// Strings are entity-decoded and trimmed (blank results become nil), finite
// numbers are stringified, and everything else yields nil. It never panics.
func Text(value any) *string {
	switch v := value.(type) {
	case string:
		decoded := strings.TrimSpace(DecodeEntities(v))
		if decoded == "" {
			return nil
		}
		return &decoded
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		return floatText(parsed)
	case float64:
		return floatText(v)
	case float32:
		return floatText(float64(v))
	case int:
		s := strconv.Itoa(v)
		return &s
	case int32:
		s := strconv.FormatInt(int64(v), 10)
		return &s
	case int64:
		s := strconv.FormatInt(v, 10)
		return &s
	default:
		return nil
	}
}

func floatText(v float64) *string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return &s
}
