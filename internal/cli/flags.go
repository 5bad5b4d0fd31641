package cli

import "github.com/spf13/cobra"

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.model, "model", app.model, "Whisper model name or model file path")
	cmd.Flags().StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where whisper models are stored")
}

func bindTranscriptionFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.language, "language", app.language, "Language code (auto|en|de|...) for transcription")
	cmd.Flags().BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")
	cmd.Flags().BoolVar(&app.silenceGate, "silence-gate", app.silenceGate, "Detect near-silent audio and skip transcription")
	cmd.Flags().Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Silence gate threshold in dBFS")
}

func bindLLMFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.llmModel, "llm-model", app.llmModel, "Chat model used for summaries")
	cmd.Flags().StringVar(&app.llmURL, "llm-url", app.llmURL, "OpenAI-compatible API base URL (Ollama: http://localhost:11434/v1)")
}

func bindFetchFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.backend, "backend", app.backend, "Download backend: auto|yt-dlp|native")
}

func bindServeFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.addr, "addr", app.addr, "Listen address for the web UI")
	bindModelFlags(cmd, app)
	bindTranscriptionFlags(cmd, app)
	bindLLMFlags(cmd, app)
	bindFetchFlags(cmd, app)
}
