package whisper

import "context"

type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	Language  string
	// OutputDir receives the engine's intermediate text file; it should be
	// the run's scratch directory.
	OutputDir string
}

type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}
