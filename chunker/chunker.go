// Package chunker splits assistant dialogue text into an ordered sequence of
// utterance fragments sized to minimize time-to-first-frame while keeping
// later fragments a predictable length for downstream TTS and lip-sync
// generation.
package chunker

import (
	"regexp"
	"strings"
)

const (
	// DefaultMaxChars is the hard cap applied to every fragment after the
	// first.
	DefaultMaxChars = 120

	// DefaultFirstChunkHardLimit is the hard cap applied to fragment 0 after
	// first-chunk buffering.
	DefaultFirstChunkHardLimit = 125
)

// DefaultAbbreviations returns the minimum recognized set of abbreviations
// whose trailing period must never be treated as a sentence boundary.
func DefaultAbbreviations() []string {
	return []string{"Mr.", "Mrs.", "Ms.", "Dr.", "D.C.", "U.S.", "e.g.", "i.e."}
}

// Config holds chunking parameters.
type Config struct {
	MaxChars            int
	FirstChunkHardLimit int
	Abbreviations       []string
}

// Option is a functional option applied to a Config.
type Option func(*Config)

func WithMaxChars(n int) Option                 { return func(c *Config) { c.MaxChars = n } }
func WithFirstChunkHardLimit(n int) Option      { return func(c *Config) { c.FirstChunkHardLimit = n } }
func WithAbbreviations(abbrevs []string) Option { return func(c *Config) { c.Abbreviations = abbrevs } }

func applyOptions(opts ...Option) Config {
	cfg := Config{
		MaxChars:            DefaultMaxChars,
		FirstChunkHardLimit: DefaultFirstChunkHardLimit,
		Abbreviations:       DefaultAbbreviations(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// sentinel stands in for a masked abbreviation-internal period while the
// sentence-boundary regex runs, so it is never mistaken for one.
const sentinel = "\x00"

// boundaryRE matches a sentence-ending punctuation mark immediately followed
// by whitespace or the end of the string. The semicolon is a first-class
// boundary alongside '.', '!', and '?'.
var boundaryRE = regexp.MustCompile(`[.!?;](\s+|$)`)

// fragment is an utterance piece carried through the pipeline alongside
// whether a semicolon forced the boundary right after it. A semicolon
// boundary is load-bearing (callers split on it deliberately) and must never
// be undone by first-chunk buffering.
type fragment struct {
	text          string
	semicolonNext bool
}

// Split divides text into ordered fragments per the adaptive chunking
// algorithm: normalize whitespace, mask abbreviation periods, split at
// sentence boundaries (. ! ? ;), subdivide over-long sentences at word
// boundaries, then greedily buffer leading fragments into fragment 0 up to
// FirstChunkHardLimit without crossing a semicolon boundary.
func Split(text string, opts ...Option) []string {
	cfg := applyOptions(opts...)

	normalized := normalizeWhitespace(text)
	if normalized == "" {
		return nil
	}

	masked := maskAbbreviations(normalized, cfg.Abbreviations)
	sentences := splitSentences(masked)

	var fragments []fragment
	for _, s := range sentences {
		pieces := subdivide(s.text, cfg.MaxChars)
		for i, p := range pieces {
			fragments = append(fragments, fragment{
				text:          unmask(p),
				semicolonNext: i == len(pieces)-1 && s.semicolonNext,
			})
		}
	}

	return bufferFirstChunk(fragments, cfg.FirstChunkHardLimit)
}

// normalizeWhitespace collapses any run of whitespace to a single space and
// trims the result.
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// maskAbbreviations replaces the trailing period of each recognized
// abbreviation, when followed by whitespace or end-of-string, with sentinel
// so the sentence-boundary split does not trigger on it.
func maskAbbreviations(text string, abbreviations []string) string {
	for _, abbr := range abbreviations {
		if !strings.HasSuffix(abbr, ".") {
			continue
		}
		stem := abbr[:len(abbr)-1]
		re := regexp.MustCompile(regexp.QuoteMeta(abbr) + `(\s|$)`)
		text = re.ReplaceAllString(text, stem+sentinel+"$1")
	}
	return text
}

func unmask(s string) string {
	return strings.ReplaceAll(s, sentinel, ".")
}

// sentence is a span of masked text ending at a sentence boundary, tagged
// with whether that boundary was a semicolon.
type sentence struct {
	text          string
	semicolonNext bool
}

// splitSentences splits masked text at every sentence-boundary match,
// keeping the boundary punctuation attached to the preceding sentence and
// discarding the separating whitespace.
func splitSentences(masked string) []sentence {
	matches := boundaryRE.FindAllStringIndex(masked, -1)
	if len(matches) == 0 {
		return []sentence{{text: masked}}
	}

	var sentences []sentence
	last := 0
	for _, m := range matches {
		boundary := m[0] + 1 // include the punctuation rune itself
		sentences = append(sentences, sentence{
			text:          masked[last:boundary],
			semicolonNext: masked[m[0]] == ';',
		})
		last = m[1] // skip the trailing whitespace
	}
	if last < len(masked) {
		sentences = append(sentences, sentence{text: masked[last:]})
	}
	return sentences
}

// subdivide breaks s into word-boundary-respecting fragments of length
// ≤ maxChars. A single word longer than maxChars is emitted whole, since a
// fragment must never split inside a word.
func subdivide(s string, maxChars int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if len(s) <= maxChars {
		return []string{s}
	}

	words := strings.Fields(s)
	var fragments []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() == 0 {
			cur.WriteString(w)
			continue
		}
		if cur.Len()+1+len(w) > maxChars {
			fragments = append(fragments, cur.String())
			cur.Reset()
			cur.WriteString(w)
			continue
		}
		cur.WriteByte(' ')
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		fragments = append(fragments, cur.String())
	}
	return fragments
}

// bufferFirstChunk greedily merges consecutive leading fragments into
// fragment 0 as long as the combined length (joined by single spaces) stays
// within limit. Merging stops the moment it would cross a fragment boundary
// that a semicolon forced, since that boundary is significant to the caller
// and must survive buffering.
func bufferFirstChunk(fragments []fragment, limit int) []string {
	if len(fragments) == 0 {
		return nil
	}

	merged := fragments[0].text
	i := 1
	for i < len(fragments) {
		if fragments[i-1].semicolonNext {
			break
		}
		candidate := merged + " " + fragments[i].text
		if len(candidate) > limit {
			break
		}
		merged = candidate
		i++
	}

	out := make([]string, 0, 1+len(fragments)-i)
	out = append(out, merged)
	for _, f := range fragments[i:] {
		out = append(out, f.text)
	}
	return out
}
