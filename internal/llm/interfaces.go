// Package llm provides the injected language-model service used by the
// consolidator for fact extraction and prose generation. The engine treats
// the generator as a replaceable function and tolerates failure or malformed
// output by falling back to a structural representation of the facts.
package llm

import "context"

// TextGenerator is the interface for LLM text completion.
// Consolidation prompts use single-string completion style (not chat).
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}
