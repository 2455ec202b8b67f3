package orchestrator

import "context"

// StreamEventType mirrors the teacher's StreamingRAGResponse.Type values
// (unified-rag-service/main.go), generalized to spec.md §4.8's
// meta -> delta* -> done|error contract.
type StreamEventType string

const (
	StreamMeta  StreamEventType = "meta"
	StreamDelta StreamEventType = "delta"
	StreamDone  StreamEventType = "done"
	StreamError StreamEventType = "error"
)

// StreamDocument is the deduplicated per-document summary carried on the
// done event, mirroring RagSourceDocument in the ground truth's
// RagHybridChatResponse.documents.
type StreamDocument struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
}

// StreamEvent is one emitted event, sent to the caller-supplied sink in
// GenerateStream. Only the fields relevant to Type are populated; meta and
// done both carry the full request envelope (mode/session/project/query/
// models) the same way _build_meta_payload and _build_stream_response do.
type StreamEvent struct {
	Type           StreamEventType  `json:"type"`
	Mode           Mode             `json:"mode,omitempty"`
	SessionID      string           `json:"session_id,omitempty"`
	ProjectID      string           `json:"project_id,omitempty"`
	Query          string           `json:"query,omitempty"`
	ChatModel      string           `json:"chat_model,omitempty"`
	EmbeddingModel string           `json:"embedding_model,omitempty"`
	Sources        []RankedSource   `json:"sources,omitempty"`
	Documents      []StreamDocument `json:"documents,omitempty"`
	Content        string           `json:"content,omitempty"`
	Answer         string           `json:"answer,omitempty"`
	CitationsUsed  []string         `json:"citations_used,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// documentsFromSources collapses the per-chunk source list down to its
// distinct parent documents, preserving first-seen order.
func documentsFromSources(sources []RankedSource) []StreamDocument {
	seen := make(map[string]bool, len(sources))
	var docs []StreamDocument
	for _, s := range sources {
		if s.DocumentID == "" || seen[s.DocumentID] {
			continue
		}
		seen[s.DocumentID] = true
		docs = append(docs, StreamDocument{DocumentID: s.DocumentID, DocumentName: s.DocumentName})
	}
	return docs
}

// GenerateStream runs retrieve->generate with a streamed chat completion,
// emitting meta once, delta for every upstream chunk, and a terminal
// done/error event, per spec.md §4.8. Session-mode checkpointing occurs
// after the stream completes, using the concatenated answer.
func (o *Orchestrator) GenerateStream(ctx context.Context, req GenerateRequest, emit func(StreamEvent) error) error {
	history, threadID, err := o.loadHistory(ctx, req)
	if err != nil {
		return emit(StreamEvent{Type: StreamError, Error: err.Error()})
	}

	sources, xmlContext, err := o.retrieveNode(ctx, req)
	if err != nil {
		return emit(StreamEvent{Type: StreamError, Error: err.Error()})
	}

	if err := emit(StreamEvent{
		Type:           StreamMeta,
		Mode:           req.Mode,
		SessionID:      req.SessionID,
		ProjectID:      req.ProjectID,
		Query:          req.Query,
		ChatModel:      req.ChatModel,
		EmbeddingModel: req.EmbeddingModel,
		Sources:        sources,
	}); err != nil {
		return err
	}

	messages := o.generateMessages(history, req.HistoryWindow, req.Query, xmlContext)

	var full []byte
	streamErr := o.chat.ChatStream(ctx, req.ChatModel, messages, func(chunk StreamChunk) error {
		if chunk.ContentDelta == "" {
			return nil
		}
		full = append(full, chunk.ContentDelta...)
		return emit(StreamEvent{Type: StreamDelta, Content: chunk.ContentDelta})
	})
	if streamErr != nil {
		return emit(StreamEvent{Type: StreamError, Error: streamErr.Error()})
	}

	citationsUsed, answer := ExtractCitations(string(full), activeSourceIDs(sources))
	o.saveTurn(ctx, threadID, req.Query, answer)

	return emit(StreamEvent{
		Type:           StreamDone,
		Mode:           req.Mode,
		SessionID:      req.SessionID,
		ProjectID:      req.ProjectID,
		Query:          req.Query,
		ChatModel:      req.ChatModel,
		EmbeddingModel: req.EmbeddingModel,
		Sources:        sources,
		Documents:      documentsFromSources(sources),
		Answer:         answer,
		CitationsUsed:  citationsUsed,
	})
}
