package processor

import (
	"strings"

	"github.com/ron-matt163/wiki-llm/internal/models"
)

type ProcessorConfig struct {
	ChunkSize int
	// ChunkOverlap is 200 when zero. Negative disables overlap.
	ChunkOverlap   int
	MinChunkLength int
}

// Processor cuts Evidence into embedding-sized chunks of text.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 20
	}

	return Processor{
		config: config,
	}
}

// Process returns the prose chunks of ev followed by one chunk per table.
func (p *Processor) Process(ev models.Evidence) []string {
	chunks := p.splitIntoChunks(cleanText(ev.Text))
	for _, t := range ev.Tables {
		chunks = append(chunks, renderTable(t))
	}
	return chunks
}

func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func renderTable(t models.Table) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Header, " | "))
	for _, row := range t.Rows {
		b.WriteString("\n")
		b.WriteString(strings.Join(row, " | "))
	}
	return b.String()
}

func (p *Processor) splitIntoChunks(text string) []string {
	var chunks []string

	// Split by sentences first
	sentences := splitIntoSentences(text)

	var current []rune

	for _, sentence := range sentences {
		s := []rune(sentence)
		// If adding this sentence would exceed chunk size
		if len(current) > 0 && len(current)+len(s) > p.config.ChunkSize {
			if len(current) >= p.config.MinChunkLength {
				chunks = append(chunks, strings.TrimSpace(string(current)))
			}

			// Start new chunk with overlap
			if p.config.ChunkOverlap > 0 && len(current) > p.config.ChunkOverlap {
				current = append([]rune{}, current[len(current)-p.config.ChunkOverlap:]...)
			} else {
				current = current[:0]
			}
		}

		current = append(current, s...)
		current = append(current, ' ')
	}

	// Add the last chunk if it meets minimum length
	if last := strings.TrimSpace(string(current)); len([]rune(last)) >= p.config.MinChunkLength {
		chunks = append(chunks, last)
	}

	return chunks
}

func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)

		end := r == '.' || r == '!' || r == '?'
		if end && (i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n') {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	// Add any remaining text
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
