package chunker

import (
	"strings"
	"unicode"
)

// MinSectionTokens is the size below which a section merges into its neighbour.
const MinSectionTokens = 80

// Section is a run of PDF text introduced by a heading-like line.
// Headings lists every heading line the section contains, in order; merged
// sections contain more than one.
type Section struct {
	Heading  string
	Headings []string
	Text     string
}

var lowercaseTitleWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "by": true, "for": true,
	"in": true, "of": true, "on": true, "or": true, "the": true, "to": true, "with": true,
}

// IsHeading reports whether line looks like a heading: a short title-cased
// line, or a line of at least six characters whose letters are mostly upper case.
func IsHeading(line string) bool {
	line = strings.TrimSpace(line)
	return isTitleLine(line) || isUpperLine(line)
}

func isTitleLine(line string) bool {
	if line == "" || len(line) > 80 || strings.HasSuffix(line, ".") {
		return false
	}
	words := strings.Fields(line)
	if len(words) > 10 {
		return false
	}
	capitalized := 0
	for i, w := range words {
		first, ok := firstLetter(w)
		if !ok {
			// numbering such as "3.2" or "-"
			continue
		}
		if unicode.IsUpper(first) {
			capitalized++
			continue
		}
		if i > 0 && lowercaseTitleWords[strings.ToLower(w)] {
			continue
		}
		return false
	}
	return capitalized > 0
}

func isUpperLine(line string) bool {
	if len(line) < 6 {
		return false
	}
	letters, upper := 0, 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters > 0 && float64(upper) >= 0.7*float64(letters)
}

func firstLetter(word string) (rune, bool) {
	for _, r := range word {
		if unicode.IsLetter(r) {
			return r, true
		}
	}
	return 0, false
}

// Sectionize splits extracted PDF text into sections. The first heading-like
// line after content starts a new section. Sections shorter than
// MinSectionTokens words merge into the previous section; a short first
// section merges into the one after it.
func Sectionize(text string) []Section {
	var raw []Section
	var body []string
	var headings []string
	heading := ""
	hasContent := false

	flush := func() {
		joined := strings.TrimSpace(strings.Join(body, "\n"))
		if joined != "" {
			raw = append(raw, Section{Heading: heading, Headings: headings, Text: joined})
		}
		body, headings, heading, hasContent = nil, nil, "", false
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			body = append(body, "")
			continue
		}
		if IsHeading(trimmed) {
			if hasContent {
				flush()
			}
			if heading == "" {
				heading = trimmed
			}
			headings = append(headings, trimmed)
			// keep the heading as its own paragraph
			body = append(body, trimmed, "")
			continue
		}
		body = append(body, trimmed)
		hasContent = true
	}
	flush()

	return mergeShort(raw)
}

func mergeShort(sections []Section) []Section {
	var out []Section
	for _, s := range sections {
		if len(out) > 0 && wordCount(s.Text) < MinSectionTokens {
			last := &out[len(out)-1]
			last.Text += "\n\n" + s.Text
			last.Headings = append(last.Headings, s.Headings...)
			continue
		}
		out = append(out, s)
	}

	if len(out) > 1 && wordCount(out[0].Text) < MinSectionTokens {
		first, second := out[0], out[1]
		merged := Section{
			Heading:  first.Heading,
			Headings: append(append([]string{}, first.Headings...), second.Headings...),
			Text:     first.Text + "\n\n" + second.Text,
		}
		if merged.Heading == "" {
			merged.Heading = second.Heading
		}
		out = append([]Section{merged}, out[2:]...)
	}
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// SectionPath returns the last heading of section that still occurs in
// chunk, or the section heading when the chunk contains none of them.
func SectionPath(chunk string, section Section) string {
	path := section.Heading
	for _, h := range section.Headings {
		if strings.Contains(chunk, h) {
			path = h
		}
	}
	return path
}
