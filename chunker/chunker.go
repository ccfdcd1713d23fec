// Package chunker splits normalized text into overlapping token windows and
// groups extracted PDF text into heading delimited sections.
package chunker

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidWindow indicates inconsistent min/max/overlap settings.
var ErrInvalidWindow = errors.New("invalid chunk window")

var paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)

// Tokenizer defines the token unit used to size chunks.
type Tokenizer interface {
	Split(text string) []string
	Join(tokens []string) string
}

// WordTokenizer counts whitespace delimited words as tokens.
type WordTokenizer struct{}

func (WordTokenizer) Split(text string) []string { return strings.Fields(text) }

func (WordTokenizer) Join(tokens []string) string { return strings.Join(tokens, " ") }

// Chunker produces token bounded, overlapping windows that prefer to end
// at paragraph breaks.
type Chunker struct {
	minTokens     int
	maxTokens     int
	overlapTokens int
	tokenizer     Tokenizer
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithWindow sets the minimum, maximum and overlap sizes in tokens.
func WithWindow(minTokens, maxTokens, overlapTokens int) Option {
	return func(c *Chunker) error {
		if maxTokens <= 0 || minTokens < 0 || minTokens > maxTokens || overlapTokens < 0 || overlapTokens >= maxTokens {
			return ErrInvalidWindow
		}
		c.minTokens = minTokens
		c.maxTokens = maxTokens
		c.overlapTokens = overlapTokens
		return nil
	}
}

// WithTokenizer replaces the default word tokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(c *Chunker) error {
		if t == nil {
			return errors.New("tokenizer is required")
		}
		c.tokenizer = t
		return nil
	}
}

// New creates a Chunker. The default window is 100/400/50 words.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		minTokens:     100,
		maxTokens:     400,
		overlapTokens: 50,
		tokenizer:     WordTokenizer{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Chunk splits text with the word tokenizer. Out of range settings are
// clamped: max to at least 1, min into [0, max], overlap into [0, max-1].
func Chunk(text string, minTokens, maxTokens, overlapTokens int) []string {
	if maxTokens < 1 {
		maxTokens = 1
	}
	minTokens = max(0, min(minTokens, maxTokens))
	overlapTokens = max(0, min(overlapTokens, maxTokens-1))
	c := &Chunker{minTokens: minTokens, maxTokens: maxTokens, overlapTokens: overlapTokens, tokenizer: WordTokenizer{}}
	return c.Chunk(text)
}

// Chunk splits text into windows of at most maxTokens tokens. A window that
// does not reach the end of the input is cut at its last paragraph break
// when that still leaves at least minTokens tokens and more than the overlap.
// The next window starts overlapTokens before the previous end.
func (c *Chunker) Chunk(text string) []string {
	tokens, paraStarts := c.tokenize(text)
	n := len(tokens)
	if n == 0 {
		return []string{}
	}

	// a boundary cut must keep the window longer than the overlap
	minCut := max(c.minTokens, c.overlapTokens+1)

	var chunks []string
	start := 0
	for {
		end := min(start+c.maxTokens, n)
		if end < n {
			for b := end - 1; b > start; b-- {
				if b-start < minCut {
					break
				}
				if paraStarts[b] {
					end = b
					break
				}
			}
		}

		chunks = append(chunks, c.render(tokens[start:end], paraStarts[start:end]))
		if end >= n {
			return chunks
		}

		next := max(end-c.overlapTokens, 0)
		if next <= start {
			next = start + 1
		}
		start = next
	}
}

// tokenize splits text into tokens and marks the tokens that open a
// paragraph other than the first.
func (c *Chunker) tokenize(text string) ([]string, []bool) {
	var tokens []string
	var paraStarts []bool
	for _, para := range paragraphBreak.Split(text, -1) {
		words := c.tokenizer.Split(para)
		for i, w := range words {
			tokens = append(tokens, w)
			paraStarts = append(paraStarts, i == 0 && len(tokens) > 1)
		}
	}
	return tokens, paraStarts
}

func (c *Chunker) render(tokens []string, paraStarts []bool) string {
	var parts []string
	from := 0
	for i := 1; i < len(tokens); i++ {
		if paraStarts[i] {
			parts = append(parts, c.tokenizer.Join(tokens[from:i]))
			from = i
		}
	}
	parts = append(parts, c.tokenizer.Join(tokens[from:]))
	return strings.Join(parts, "\n\n")
}

// CountTokens returns the number of tokens in text.
func (c *Chunker) CountTokens(text string) int {
	return len(c.tokenizer.Split(text))
}
