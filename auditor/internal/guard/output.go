package guard

import "regexp"

// SanitizedMarker is appended to a payload the sanitizer changed.
const SanitizedMarker = "\n<!-- A11y Guard: Unsafe content removed -->"

var unsafePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\son\w+="[^"]*"`),
	regexp.MustCompile(`(?i)\son\w+='[^']*'`),
}

// Sanitize strips script blocks, javascript: references and inline event
// handlers from generated markup. The pattern set is reapplied until a
// pass removes nothing, so a removal cannot splice a new unsafe token
// together. When anything was removed the result carries SanitizedMarker
// once and changed is true. Clean input is returned byte-identical.
func Sanitize(code string) (clean string, changed bool) {
	if code == "" {
		return "", false
	}
	clean = code
	for {
		prev := clean
		for _, re := range unsafePatterns {
			clean = re.ReplaceAllString(clean, "")
		}
		if clean == prev {
			break
		}
	}
	if clean == code {
		return code, false
	}
	return clean + SanitizedMarker, true
}
