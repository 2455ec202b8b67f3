// Package header implements the contextual header generator (spec.md §4.4).
package header

import (
	"context"
	"fmt"
	"strings"

	"ragsuite/internal/apierr"
	"ragsuite/internal/pipeline/chunk"
)

// Mode selects how a chunk's contextual header is produced.
type Mode int

const (
	ModeTemplate Mode = iota
	ModeLLM
	ModeDisabled
)

const llmHeaderPromptTemplate = `Document: %s

Full document text:
%s

Target chunk:
%s

Write a 1-2 sentence header situating this chunk within the document.`

// Input is one chunk to contextualize.
type Input struct {
	DocumentName   string
	FullNormalized string
	ChunkIndex     int
	ChunkText      string
}

// Output carries the generated header and the assembled contextualized
// text (header + "\n\n" + chunk text).
type Output struct {
	Header          string
	Contextualized  string
}

// Generate produces headers for every input in order, honoring ctx
// cancellation between chunks and within any in-flight LLM call, per
// spec.md §4.4.
func Generate(ctx context.Context, client chunk.ChatCompleter, model string, mode Mode, inputs []Input) ([]Output, error) {
	outputs := make([]Output, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, apierr.Cancelled("contextualization cancelled")
		}

		var headerText string
		switch mode {
		case ModeLLM:
			var err error
			headerText, err = generateLLMHeader(ctx, client, model, in)
			if err != nil {
				return nil, err
			}
		case ModeTemplate:
			headerText = fmt.Sprintf("Document '%s', chunk %d.", in.DocumentName, in.ChunkIndex+1)
		case ModeDisabled:
			headerText = ""
		}

		contextualized := in.ChunkText
		if headerText != "" {
			contextualized = strings.TrimSpace(headerText + "\n\n" + in.ChunkText)
		}

		outputs = append(outputs, Output{Header: headerText, Contextualized: contextualized})
	}
	return outputs, nil
}

func generateLLMHeader(ctx context.Context, client chunk.ChatCompleter, model string, in Input) (string, error) {
	prompt := fmt.Sprintf(llmHeaderPromptTemplate, in.DocumentName, in.FullNormalized, in.ChunkText)

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := client.CompleteChat(ctx, model, []chunk.ChatMessage{{Role: "user", Content: prompt}})
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", apierr.Cancelled("contextualization cancelled during llm header generation")
	case r := <-done:
		if r.err != nil {
			return "", apierr.ExternalService("ContextualHeaderGenerator", "inference", 0, r.err.Error(), r.err)
		}
		return chunk.StripThinkingSections(r.text), nil
	}
}
