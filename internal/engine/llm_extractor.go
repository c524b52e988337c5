package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/pkg/types"
)

// LLMExtractor extracts facts from a memory cluster with a language model.
// The prompt numbers the memories and requires the response to cite them
// by index; indexes are mapped back to memory ids before the facts leave
// this type. Out-of-range citations are dropped per fact; the consolidator
// pads any memory left uncited, so a sloppy completion degrades phrasing
// but never coverage.
type LLMExtractor struct {
	generator llm.TextGenerator
}

// NewLLMExtractor wraps a text generator as a FactExtractor.
func NewLLMExtractor(generator llm.TextGenerator) *LLMExtractor {
	return &LLMExtractor{generator: generator}
}

const factExtractionPrompt = `You distill notes about one business entity into distinct facts.

Rules:
- Output every distinct claim exactly once; merge restatements of the same claim.
- Never invent a claim that is not in the notes.
- Cite the 0-based note indexes each fact came from.
- Confidence reflects how consistently the notes support the fact, 0.0 to 1.0.

Respond with JSON only:
{"facts": [{"text": "...", "confidence": 0.9, "source_indexes": [0, 2]}]}

Notes:
%s`

// Extract implements FactExtractor.
func (x *LLMExtractor) Extract(ctx context.Context, memories []*types.Memory) ([]types.Fact, error) {
	var sb strings.Builder
	for i, m := range memories {
		fmt.Fprintf(&sb, "%d: %s\n", i, m.Text)
	}

	raw, err := x.generator.Complete(ctx, fmt.Sprintf(factExtractionPrompt, sb.String()))
	if err != nil {
		return nil, fmt.Errorf("fact extraction: %w", err)
	}
	parsed, err := llm.ParseFactResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("fact extraction: %w", err)
	}

	facts := make([]types.Fact, 0, len(parsed))
	for _, f := range parsed {
		var sources []string
		for _, idx := range f.SourceIndexes {
			if idx >= 0 && idx < len(memories) {
				sources = append(sources, memories[idx].ID)
			}
		}
		if len(sources) == 0 {
			continue
		}
		facts = append(facts, types.Fact{
			Text:            f.Text,
			Confidence:      f.Confidence,
			SourceMemoryIDs: sources,
			Category:        classify(f.Text).Category,
		})
	}
	return facts, nil
}

// LLMProseGenerator renders facts as prose with a language model. The
// prompt forbids introducing information beyond the fact list.
type LLMProseGenerator struct {
	generator llm.TextGenerator
}

// NewLLMProseGenerator wraps a text generator as a ProseGenerator.
func NewLLMProseGenerator(generator llm.TextGenerator) *LLMProseGenerator {
	return &LLMProseGenerator{generator: generator}
}

const prosePrompt = `Write one short paragraph summarizing these facts about a business entity.
Use only the facts given; do not add, infer, or embellish anything.

Facts:
%s

Respond with the paragraph only.`

// GenerateProse implements ProseGenerator.
func (g *LLMProseGenerator) GenerateProse(ctx context.Context, facts []types.Fact) (string, error) {
	var sb strings.Builder
	for _, f := range facts {
		fmt.Fprintf(&sb, "- %s\n", f.Text)
	}
	text, err := g.generator.Complete(ctx, fmt.Sprintf(prosePrompt, sb.String()))
	if err != nil {
		return "", fmt.Errorf("prose generation: %w", err)
	}
	return strings.TrimSpace(text), nil
}

var (
	_ FactExtractor  = (*LLMExtractor)(nil)
	_ ProseGenerator = (*LLMProseGenerator)(nil)
)
