// Package op provides the standard operators the workflows are assembled
// from: catalog sources, state filters, storage readers and writers, the
// paper reader, the LLM stages, and the webhook sink.
//
// Operators exchange []any lists so heterogeneous stages compose freely;
// each operator asserts the element type it works on and fails the run on
// a mismatch.
package op

import (
	"fmt"

	"github.com/paperdag/paperdag/internal/models"
)

// PaperText pairs a paper with its extracted body text. An empty Text
// means extraction failed or was skipped; downstream stages treat such
// papers as not yet processed.
type PaperText struct {
	Paper *models.Paper
	Text  string
}

// FilterResult pairs a paper with the relevance verdict of the LLM filter.
type FilterResult struct {
	Paper    *models.Paper
	Rejected bool
}

// PushResult records the delivery outcome for one pushed item.
type PushResult struct {
	Item any
	OK   bool
}

// ChatOptions carries the model and sampling settings shared by the LLM
// operators.
type ChatOptions struct {
	Model         string
	Temperature   float64
	MaxTokens     int
	MaxConcurrent int
}

const defaultMaxConcurrent = 4

func (o ChatOptions) withDefaults() ChatOptions {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaultMaxConcurrent
	}
	return o
}

// IDFunc extracts the stable identifier of an item for state tracking.
type IDFunc func(item any) (string, error)

// PaperID is the IDFunc for the record types the workflows pass around.
func PaperID(item any) (string, error) {
	switch v := item.(type) {
	case *models.Paper:
		return v.ID, nil
	case *models.PaperWithSummary:
		return v.ID, nil
	case PaperText:
		return v.Paper.ID, nil
	case FilterResult:
		return v.Paper.ID, nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("op: cannot extract id from %T", item)
	}
}

// toList asserts the inter-operator list currency. A nil input is an
// empty list.
func toList(input any) ([]any, error) {
	if input == nil {
		return nil, nil
	}
	items, ok := input.([]any)
	if !ok {
		return nil, fmt.Errorf("op: expected list input, got %T", input)
	}
	return items, nil
}

// papersOf asserts every element to *models.Paper.
func papersOf(items []any) ([]*models.Paper, error) {
	papers := make([]*models.Paper, len(items))
	for i, item := range items {
		paper, ok := item.(*models.Paper)
		if !ok {
			return nil, fmt.Errorf("op: expected *models.Paper, got %T", item)
		}
		papers[i] = paper
	}
	return papers, nil
}
