package llm

import (
	"encoding/json"
	"strings"
)

// Extraction is the strict-JSON contract the extraction prompt asks the
// model for: an answer plus its supporting citation, or all-null when the
// answer is not present in the provided context.
type Extraction struct {
	Answer        string `json:"answer"`
	CitationURL   string `json:"citation_url"`
	EvidenceQuote string `json:"evidence_quote"`
}

// ParseExtraction parses raw as an Extraction. It tries strict JSON first;
// on failure it falls back to slicing the outermost {...} span and
// retrying. Returns nil, nil when raw is empty or neither parse succeeds.
func ParseExtraction(raw string) (*Extraction, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var ext Extraction
	if err := json.Unmarshal([]byte(raw), &ext); err == nil {
		return &ext, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, nil
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &ext); err == nil {
		return &ext, nil
	}

	return nil, nil
}
