package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
)

// ExampleSet holds additional example inputs keyed by problem type id.
type ExampleSet struct {
	Version  int                          `json:"version"`
	Examples map[string][]json.RawMessage `json:"examples"`
}

// LoadExampleSet loads an example set from a JSON file.
func LoadExampleSet(path string) (*ExampleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read example file: %w", err)
	}

	var set ExampleSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse example JSON: %w", err)
	}

	if set.Version != 1 {
		return nil, fmt.Errorf("unsupported example file version: %d", set.Version)
	}

	return &set, nil
}

// DecodeExamples turns the raw inputs listed for typ into example problems.
// A nil set yields no examples.
func DecodeExamples[I, O any](set *ExampleSet, typ *ProblemType[I, O]) ([]*Problem[I, O], error) {
	if set == nil {
		return nil, nil
	}
	raws := set.Examples[typ.ID()]
	out := make([]*Problem[I, O], 0, len(raws))
	for i, raw := range raws {
		var input I
		if err := json.Unmarshal(raw, &input); err != nil {
			return nil, fmt.Errorf("example %d of %s: %w: %v", i, typ.ID(), ErrInvalidInput, err)
		}
		out = append(out, NewProblemWithInput(typ, input))
	}
	return out, nil
}
