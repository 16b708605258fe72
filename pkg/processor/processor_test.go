package processor_test

import (
	"strings"
	"testing"

	"github.com/ron-matt163/wiki-llm/internal/models"
	"github.com/ron-matt163/wiki-llm/pkg/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_Process(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      60,
		ChunkOverlap:   10,
		MinChunkLength: 5,
	})

	ev := models.Evidence{
		Text: "James Watt improved the steam engine.\nHe was born in Greenock. His engine changed industry!",
		Tables: []models.Table{{
			Header: []string{"Year", "Event"},
			Rows:   [][]string{{"1765", "Separate condenser"}, {"1781", "Rotary motion"}},
		}},
	}

	chunks := p.Process(ev)
	require.GreaterOrEqual(t, len(chunks), 3)
	assert.Equal(t, "James Watt improved the steam engine.", chunks[0])
	assert.Equal(t, "Year | Event\n1765 | Separate condenser\n1781 | Rotary motion", chunks[len(chunks)-1])

	prose := strings.Join(chunks[:len(chunks)-1], " ")
	assert.Contains(t, prose, "He was born in Greenock.")
	assert.Contains(t, prose, "His engine changed industry!")
}

func TestProcessor_Overlap(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      30,
		ChunkOverlap:   8,
		MinChunkLength: 1,
	})

	chunks := p.Process(models.Evidence{Text: "Première phrase ici. Deuxième phrase là. Troisième."})
	require.Len(t, chunks, 3)
	assert.Equal(t, "Première phrase ici.", chunks[0])
	// The overlap carries the tail of the previous chunk, rune-safe.
	assert.True(t, strings.HasPrefix(chunks[1], "se ici."), chunks[1])
	assert.Contains(t, chunks[1], "Deuxième phrase là.")
}

func TestProcessor_NoOverlap(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      30,
		ChunkOverlap:   -1,
		MinChunkLength: 1,
	})

	chunks := p.Process(models.Evidence{Text: "Première phrase ici. Deuxième phrase là. Troisième."})
	assert.Equal(t, []string{"Première phrase ici.", "Deuxième phrase là. Troisième."}, chunks)
}

func TestProcessor_ShortTextDropped(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{MinChunkLength: 50})
	assert.Empty(t, p.Process(models.Evidence{Text: "Too short."}))
	assert.Empty(t, p.Process(models.Evidence{}))
}
