// Package cq talks to the ConductorQuantum platform: a catalog of the
// inference models applicable to each sweep kind, and an HTTP client that
// submits completed sweep data for analysis.
package cq

import (
	"fmt"
	"sort"

	"github.com/condmatlab/gateman/internal/model"
)

// modelsByKind maps each sweep kind to the models the platform can run on
// its data.
var modelsByKind = map[model.RunKind]map[string]bool{
	model.Kind1D: {
		"pinch-off-classifier":           true,
		"pinch-off-parameter-extractor":  true,
		"turn-on-classifier":             true,
		"turn-on-parameter-extractor":    true,
		"coulomb-blockade-classifier":    true,
		"coulomb-blockade-peak-detector": true,
	},
	model.Kind2D: {
		"charge-stability-diagram-classifier": true,
		"charge-stability-diagram-segmenter":  true,
		"triple-point-detector":               true,
		"honeycomb-pattern-detector":          true,
	},
	model.KindTime: {
		"noise-analyzer":     true,
		"drift-detector":     true,
		"stability-analyzer": true,
	},
}

// Models returns the sorted model names supported for a sweep kind.
func Models(kind model.RunKind) []string {
	names := make([]string, 0, len(modelsByKind[kind]))
	for name := range modelsByKind[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateModel checks that name is a supported model for the sweep kind.
// An empty name is allowed: analysis is optional.
func ValidateModel(kind model.RunKind, name string) error {
	if name == "" {
		return nil
	}
	if !kind.IsValid() {
		return fmt.Errorf("unknown sweep kind %q", kind)
	}
	if !modelsByKind[kind][name] {
		return fmt.Errorf("model %q is not supported for %s sweeps, supported models are %v",
			name, kind, Models(kind))
	}
	return nil
}
