package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartSpinnerEnabled(t *testing.T) {
	t.Parallel()
	s := startSpinner(true, "Downloading audio...")
	require.NotNil(t, s)
	s.Describe("Transcribing audio...")
	s.Stop()
	s.Stop()
}

func TestStartSpinnerDisabled(t *testing.T) {
	t.Parallel()
	s := startSpinner(false, "testing")
	require.NotNil(t, s)
	s.Describe("ignored")
	s.Stop()
}

func TestNilSpinnerIsSafe(t *testing.T) {
	t.Parallel()
	var s *spinner
	s.Describe("ignored")
	s.Stop()
}
