package chunk

import (
	"fmt"
	"regexp"

	"ragsuite/internal/xjson"
)

var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// agenticResponse mirrors the schema-constrained prompt's expected shape:
// {"chunks": [{"text": ..., "rationale": ...}]}.
type agenticResponse struct {
	Chunks []agenticChunkEntry `json:"chunks"`
}

type agenticChunkEntry struct {
	Text      string `json:"text"`
	Rationale string `json:"rationale"`
}

// ParseAgenticResponse strips any thinking section, then tries a direct
// JSON unmarshal, falling back to extracting a fenced ```json block — the
// same two-step strategy as the original json_response_parser.
func ParseAgenticResponse(raw string) (agenticResponse, error) {
	cleaned := StripThinkingSections(raw)

	var parsed agenticResponse
	if err := xjson.Unmarshal([]byte(cleaned), &parsed); err == nil {
		return parsed, nil
	}

	match := fencedJSONBlock.FindStringSubmatch(cleaned)
	if match == nil {
		return agenticResponse{}, fmt.Errorf("agentic response is not valid JSON and contains no fenced json block")
	}
	if err := xjson.Unmarshal([]byte(match[1]), &parsed); err != nil {
		return agenticResponse{}, fmt.Errorf("fenced json block failed to parse: %w", err)
	}
	return parsed, nil
}
