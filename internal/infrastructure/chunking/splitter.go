package chunking

import (
	"math"
	"strings"
	"unicode"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

const (
	defaultMaxTokens     = 500
	defaultOverlapTokens = 50

	// wordsPerToken is the fixed proxy used to turn an overlap token budget
	// into a word count.
	wordsPerToken = 1.3
)

// EstimateTokens is a cheap length-based proxy for model token count:
// ceil(len/4). It is deterministic and intentionally not a real tokenizer.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Splitter cuts extracted text into overlapping passages bounded by an
// estimated token budget. Paragraph boundaries are preserved where possible;
// paragraphs that alone exceed the budget fall back to sentence packing.
type Splitter struct {
	maxTokens          int
	overlapTokens      int
	preserveParagraphs bool
}

func NewSplitter(maxTokens, overlapTokens int, preserveParagraphs bool) *Splitter {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if overlapTokens < 0 {
		overlapTokens = defaultOverlapTokens
	}
	return &Splitter{
		maxTokens:          maxTokens,
		overlapTokens:      overlapTokens,
		preserveParagraphs: preserveParagraphs,
	}
}

// Chunk splits text into passages with contiguous chunk indexes starting at
// 0. Empty input yields an empty result, never an error.
func (s *Splitter) Chunk(text string) []domain.Passage {
	var paragraphs []string
	if s.preserveParagraphs {
		paragraphs = splitParagraphs(text)
	} else if strings.TrimSpace(text) != "" {
		paragraphs = []string{text}
	}

	var (
		out     []domain.Passage
		current string
		index   int
	)

	emit := func(content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		out = append(out, domain.Passage{
			Content:    content,
			ChunkIndex: index,
			TokenCount: EstimateTokens(content),
		})
		index++
	}

	for _, paragraph := range paragraphs {
		if EstimateTokens(paragraph) > s.maxTokens {
			// Flush accumulated content, then pack this paragraph sentence
			// by sentence.
			emit(current)
			current = ""

			buffer := ""
			for _, sentence := range splitSentences(paragraph) {
				if EstimateTokens(buffer+" "+sentence) > s.maxTokens && buffer != "" {
					emit(buffer)
					buffer = s.overlapSuffix(buffer) + " " + sentence
					continue
				}
				if buffer == "" {
					buffer = sentence
				} else {
					buffer += " " + sentence
				}
			}
			if strings.TrimSpace(buffer) != "" {
				current = buffer
			}
			continue
		}

		if EstimateTokens(current+"\n\n"+paragraph) > s.maxTokens && strings.TrimSpace(current) != "" {
			emit(current)
			current = s.overlapSuffix(current) + "\n\n" + paragraph
			continue
		}
		if current == "" {
			current = paragraph
		} else {
			current += "\n\n" + paragraph
		}
	}

	emit(current)
	return out
}

// ChunkPages runs the same paragraph accumulation across page boundaries.
// A passage records the page of the first paragraph that seeded its buffer;
// the page does not change once the buffer has content, even when content
// appended later came from a later page.
func (s *Splitter) ChunkPages(pages []domain.Page) []domain.Passage {
	var (
		out         []domain.Passage
		current     string
		currentPage int
		index       int
	)

	emit := func(content string, page int) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		out = append(out, domain.Passage{
			Content:    content,
			ChunkIndex: index,
			PageNumber: page,
			TokenCount: EstimateTokens(content),
		})
		index++
	}

	for _, page := range pages {
		for _, paragraph := range splitParagraphs(page.Content) {
			if EstimateTokens(current+"\n\n"+paragraph) > s.maxTokens && strings.TrimSpace(current) != "" {
				emit(current, currentPage)
				current = s.overlapSuffix(current) + "\n\n" + paragraph
				currentPage = page.PageNumber
				continue
			}
			if current == "" {
				current = paragraph
				currentPage = page.PageNumber
			} else {
				current += "\n\n" + paragraph
			}
		}
	}

	emit(current, currentPage)
	return out
}

// overlapSuffix returns the last ceil(overlapTokens/1.3) whitespace-delimited
// words of an emitted chunk, or the whole chunk when it has fewer words.
func (s *Splitter) overlapSuffix(text string) string {
	words := strings.Fields(text)
	overlapWords := int(math.Ceil(float64(s.overlapTokens) / wordsPerToken))
	if len(words) <= overlapWords {
		return text
	}
	return strings.Join(words[len(words)-overlapWords:], " ")
}

// splitParagraphs cuts text on runs of blank lines, dropping
// whitespace-only fragments.
func splitParagraphs(text string) []string {
	var (
		out     []string
		builder strings.Builder
		blanks  int
	)
	flush := func() {
		if strings.TrimSpace(builder.String()) != "" {
			out = append(out, builder.String())
		}
		builder.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			blanks++
			continue
		}
		if blanks > 0 && builder.Len() > 0 {
			flush()
		}
		blanks = 0
		if builder.Len() > 0 {
			builder.WriteByte('\n')
		}
		builder.WriteString(line)
	}
	flush()
	return out
}

// splitSentences breaks a paragraph on whitespace that follows '.', '!' or
// '?'. A paragraph with no such boundary comes back whole; the caller emits
// it as-is rather than dropping or looping on it.
func splitSentences(paragraph string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(paragraph)
	for i := 0; i < len(runes)-1; i++ {
		if (runes[i] == '.' || runes[i] == '!' || runes[i] == '?') && unicode.IsSpace(runes[i+1]) {
			sentence := strings.TrimSpace(string(runes[start : i+1]))
			if sentence != "" {
				out = append(out, sentence)
			}
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(runes) {
		tail := strings.TrimSpace(string(runes[start:]))
		if tail != "" {
			out = append(out, tail)
		}
	}
	return out
}
