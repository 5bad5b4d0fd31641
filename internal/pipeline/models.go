package pipeline

import (
	"context"

	"github.com/fmueller/semisizer/internal/summarize"
)

type registryModels struct {
	registry *summarize.Registry
	model    string
}

// RegistryModels serves one named model out of a shared registry.
func RegistryModels(registry *summarize.Registry, model string) Models {
	return registryModels{registry: registry, model: model}
}

func (m registryModels) Acquire(ctx context.Context) (Summarizer, error) {
	handle, err := m.registry.Acquire(ctx, m.model)
	if err != nil {
		return nil, err
	}
	return handle, nil
}
