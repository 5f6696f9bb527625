package normalize

// Post-processing of model output. The rules run in a fixed order because
// later ones clean up whitespace the earlier ones introduce; the whole
// chain is idempotent on already-normalized text.

import (
	"regexp"
	"strings"
)

// Acronyms canonicalized to uppercase wherever they appear as whole words.
var acronyms = []string{"CBC", "WBC", "HCT", "MCV", "MCH", "MCHC", "RBC"}

var (
	acronymRes = compileAcronyms()

	// A bare word immediately before ": <digit>" or "(Missing)" is a test
	// name and gets title-cased. Known heuristic: it can fire on ordinary
	// prose shaped like "word: 5".
	testNameRe = regexp.MustCompile(`\b([A-Za-z]+)(:\s+\d|\(Missing\))`)

	headingRe  = regexp.MustCompile(`(\n#+\s)`)
	boldLineRe = regexp.MustCompile(`(\n\*\*.*\*\*)`)
	bulletRe   = regexp.MustCompile(`-\s*(\S)`)
	newlinesRe = regexp.MustCompile(`\n{3,}`)
)

func compileAcronyms() map[*regexp.Regexp]string {
	res := make(map[*regexp.Regexp]string, len(acronyms))
	for _, a := range acronyms {
		res[regexp.MustCompile(`(?i)\b`+a+`\b`)] = a
	}
	return res
}

// Normalize canonicalizes acronym casing and Markdown spacing in model
// output. Deterministic and idempotent.
func Normalize(text string) string {
	// 1. hematology acronyms to uppercase, any input case
	for re, upper := range acronymRes {
		text = re.ReplaceAllString(text, upper)
	}

	// 2. title-case test names that precede a value or a missing-marker
	text = testNameRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := testNameRe.FindStringSubmatch(m)
		return titleWord(sub[1]) + sub[2]
	})

	// 3. blank line before headings and bold-only lines
	text = headingRe.ReplaceAllString(text, "\n\n$1")
	text = boldLineRe.ReplaceAllString(text, "\n\n$1")

	// 4. exactly one space after a bullet dash
	text = bulletRe.ReplaceAllString(text, "- $1")

	// 5. collapse runs of 3+ newlines to a single blank line
	text = newlinesRe.ReplaceAllString(text, "\n\n")

	// 6. trim the whole result
	return strings.TrimSpace(text)
}

// titleWord uppercases the first letter and lowercases the rest, but keeps
// words the acronym pass already uppercased.
func titleWord(w string) string {
	if w == "" {
		return w
	}
	for _, a := range acronyms {
		if w == a {
			return w
		}
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}
