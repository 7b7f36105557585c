package catalogsync

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ModelDescriptor is one model in the external catalog payload. Pricing
// fields arrive as decimal strings in the upstream format; flexPrice also
// tolerates bare JSON numbers.
type ModelDescriptor struct {
	ID               string          `json:"id"`
	CanonicalSlug    string          `json:"canonical_slug"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	ContextLength    int64           `json:"context_length"`
	CreatedTimestamp int64           `json:"created"`
	Architecture     ArchitectureDoc `json:"architecture"`
	Pricing          PricingDoc      `json:"pricing"`
	TopProvider      TopProviderDoc  `json:"top_provider"`
	SupportedParams  []string        `json:"supported_parameters"`
}

type ArchitectureDoc struct {
	Modality         string   `json:"modality"`
	InputModalities  []string `json:"input_modalities"`
	OutputModalities []string `json:"output_modalities"`
	Tokenizer        string   `json:"tokenizer"`
}

type PricingDoc struct {
	Prompt            flexPrice `json:"prompt"`
	Completion        flexPrice `json:"completion"`
	Request           flexPrice `json:"request"`
	Image             flexPrice `json:"image"`
	WebSearch         flexPrice `json:"web_search"`
	InternalReasoning flexPrice `json:"internal_reasoning"`
	InputCacheRead    flexPrice `json:"input_cache_read"`
	InputCacheWrite   flexPrice `json:"input_cache_write"`
}

type TopProviderDoc struct {
	MaxCompletionTokens int64 `json:"max_completion_tokens"`
	IsModerated         bool  `json:"is_moderated"`
}

// flexPrice decodes a USD unit price that may be a JSON string or number.
type flexPrice float64

func (p *flexPrice) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		*p = 0
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("parse price %q: %w", s, err)
		}
		*p = flexPrice(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = flexPrice(v)
	return nil
}

func (p flexPrice) Float64() float64 { return float64(p) }

type payloadEnvelope struct {
	Data []ModelDescriptor `json:"data"`
}

// ParsePayload decodes a catalog payload, accepting either the upstream
// {"data": [...]} envelope or a bare JSON array of descriptors.
func ParsePayload(raw []byte) ([]ModelDescriptor, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var descriptors []ModelDescriptor
		if err := json.Unmarshal(raw, &descriptors); err != nil {
			return nil, fmt.Errorf("decode catalog payload: %w", err)
		}
		return descriptors, nil
	}
	var envelope payloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode catalog payload: %w", err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("decode catalog payload: missing data array")
	}
	return envelope.Data, nil
}
