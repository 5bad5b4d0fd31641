package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/fmueller/semisizer/internal/summarize"
	"github.com/stretchr/testify/require"
)

type stubGreeter struct {
	greetErr error
}

func (s stubGreeter) Greet(context.Context) error { return s.greetErr }

func (stubGreeter) Summarize(_ context.Context, transcript string) (string, error) {
	return "short: " + transcript, nil
}

func TestRegistryModelsAcquiresNamedModel(t *testing.T) {
	t.Parallel()

	var requested []string
	reg := summarize.NewRegistryWithFactory(func(model string) summarize.Greeter {
		requested = append(requested, model)
		return stubGreeter{}
	}, nil)

	models := RegistryModels(reg, "llama3.2:latest")
	handle, err := models.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, reg.Refs("llama3.2:latest"))

	summary, err := handle.Summarize(context.Background(), "text")
	require.NoError(t, err)
	require.Equal(t, "short: text", summary)

	handle.Release()
	require.Equal(t, 0, reg.Refs("llama3.2:latest"))
	require.Equal(t, []string{"llama3.2:latest"}, requested)
}

func TestRegistryModelsReturnsNilHandleOnFailure(t *testing.T) {
	t.Parallel()

	reg := summarize.NewRegistryWithFactory(func(string) summarize.Greeter {
		return stubGreeter{greetErr: errors.New("unreachable")}
	}, nil)

	handle, err := RegistryModels(reg, "llama").Acquire(context.Background())
	require.Error(t, err)
	require.Nil(t, handle)
}
