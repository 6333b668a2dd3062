// Package detect implements the pluggable PII detector backends: an
// offline rule-based scanner, an OpenAI-backed extractor, and a Korean NER
// extractor. All backends normalize their output into anonymizer.Entity at
// this boundary so response-schema differences never leak into the merger.
package detect

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/casenetai/anonymizer/internal/anonymizer"
)

// wireEntity matches the {entities:[...]} response schema shared by the
// chat-completion backends
type wireEntity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Start      *int    `json:"start,omitempty"`
	End        *int    `json:"end,omitempty"`
	Confidence float64 `json:"confidence"`
}

type entityPayload struct {
	Entities []wireEntity `json:"entities"`
}

// categoryPayload matches the legacy flat-array schema without offsets
type categoryPayload struct {
	Names       []string `json:"names"`
	Facilities  []string `json:"facilities"`
	Phones      []string `json:"phones"`
	Addresses   []string `json:"addresses"`
	Emails      []string `json:"emails"`
	ResidentIDs []string `json:"residentIds"`
}

// wireTypes maps backend type labels onto internal entity types
var wireTypes = map[string]anonymizer.EntityType{
	"PERSON":     anonymizer.EntityName,
	"PHONE":      anonymizer.EntityPhone,
	"EMAIL":      anonymizer.EntityEmail,
	"ADDRESS":    anonymizer.EntityAddress,
	"ID_NUMBER":  anonymizer.EntityIdentifier,
	"FACILITY":   anonymizer.EntityFacility,
	"DATE":       anonymizer.EntityDate,
	"name":       anonymizer.EntityName,
	"phone":      anonymizer.EntityPhone,
	"email":      anonymizer.EntityEmail,
	"address":    anonymizer.EntityAddress,
	"identifier": anonymizer.EntityIdentifier,
	"facility":   anonymizer.EntityFacility,
	"date":       anonymizer.EntityDate,
}

// parseEntityJSON decodes a backend response body into entities,
// normalizing whichever of the two known schemas it carries
func parseEntityJSON(content []byte, source anonymizer.Source, defaultConfidence float64) ([]anonymizer.Entity, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(content, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", anonymizer.ErrDetectorParse, err)
	}

	if _, ok := probe["entities"]; ok {
		var payload entityPayload
		if err := json.Unmarshal(content, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", anonymizer.ErrDetectorParse, err)
		}

		entities := make([]anonymizer.Entity, 0, len(payload.Entities))
		for _, we := range payload.Entities {
			entityType, ok := wireTypes[we.Type]
			if !ok {
				continue
			}
			confidence := we.Confidence
			if confidence == 0 {
				confidence = defaultConfidence
			}
			entity := anonymizer.Entity{
				Original:   we.Text,
				Type:       entityType,
				Confidence: confidence,
				Source:     source,
			}
			if we.Start != nil && we.End != nil {
				entity.Span = &anonymizer.Span{Start: *we.Start, End: *we.End}
			}
			entities = append(entities, entity)
		}
		return entities, nil
	}

	// Legacy flat-category schema.
	var payload categoryPayload
	if err := json.Unmarshal(content, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", anonymizer.ErrDetectorParse, err)
	}

	var entities []anonymizer.Entity
	appendAll := func(values []string, entityType anonymizer.EntityType) {
		for _, v := range values {
			entities = append(entities, anonymizer.Entity{
				Original:   v,
				Type:       entityType,
				Confidence: defaultConfidence,
				Source:     source,
			})
		}
	}
	appendAll(payload.Names, anonymizer.EntityName)
	appendAll(payload.Facilities, anonymizer.EntityFacility)
	appendAll(payload.Phones, anonymizer.EntityPhone)
	appendAll(payload.Addresses, anonymizer.EntityAddress)
	appendAll(payload.Emails, anonymizer.EntityEmail)
	appendAll(payload.ResidentIDs, anonymizer.EntityIdentifier)

	return entities, nil
}

// validateEntities drops entities whose original is not a literal substring
// of the scanned text. LLM backends occasionally paraphrase; a paraphrased
// original would make the applier a silent no-op, so it is discarded and
// counted instead. Spans that disagree with the text are cleared but the
// entity survives.
func validateEntities(text string, entities []anonymizer.Entity) ([]anonymizer.Entity, int) {
	valid := entities[:0]
	dropped := 0

	for _, e := range entities {
		if e.Original == "" || !strings.Contains(text, e.Original) {
			dropped++
			continue
		}
		if e.Span != nil {
			if e.Span.Start < 0 || e.Span.End > len(text) || e.Span.Start >= e.Span.End ||
				text[e.Span.Start:e.Span.End] != e.Original {
				e.Span = nil
			}
		}
		valid = append(valid, e)
	}

	return valid, dropped
}

// filterByConfidence drops entities below the threshold
func filterByConfidence(entities []anonymizer.Entity, minConfidence float64) []anonymizer.Entity {
	filtered := entities[:0]
	for _, e := range entities {
		if e.Confidence >= minConfidence {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
