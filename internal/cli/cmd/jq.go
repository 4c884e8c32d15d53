package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// compileJqFilter parses and compiles a jq filter expression.
func compileJqFilter(filter string) (*gojq.Code, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, err
	}
	return gojq.Compile(query)
}

// applyJqFilter runs code against v and collects every result. v is passed
// through JSON first so jq sees plain maps and slices.
func applyJqFilter(code *gojq.Code, v any) ([]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}

	var results []any
	iter := code.Run(input)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := r.(error); isErr {
			if _, halt := err.(*gojq.HaltError); halt {
				break
			}
			return nil, fmt.Errorf("jq: %w", err)
		}
		results = append(results, r)
	}
	return results, nil
}
