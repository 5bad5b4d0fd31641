// Package clipboard copies summaries and transcripts to the desktop
// clipboard through the platform's command-line tools.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("no clipboard command available")

const copyTimeout = 4 * time.Second

type commandSpec struct {
	name string
	args []string
	// detach is for tools such as xclip that keep serving the selection
	// after the data was written.
	detach bool
}

func CopyText(ctx context.Context, value string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	spec, err := detectCommand(runtime.GOOS, os.Getenv("WAYLAND_DISPLAY") != "", exec.LookPath)
	if err != nil {
		return err
	}

	if spec.detach {
		return copyWithDetachedCommand(spec, value)
	}

	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	cmd := exec.CommandContext(copyCtx, spec.name, spec.args...)
	cmd.Stdin = strings.NewReader(value)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if runErr := cmd.Run(); runErr != nil {
		if errors.Is(copyCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("copy to clipboard timed out: %w", copyCtx.Err())
		}
		return fmt.Errorf("copy to clipboard with %s: %w", spec.name, runErr)
	}

	return nil
}

// detectCommand picks the clipboard tool for goos. On Linux wl-copy is only
// preferred inside a Wayland session; X11 tools come next.
func detectCommand(goos string, wayland bool, lookPath func(string) (string, error)) (commandSpec, error) {
	has := func(name string) bool {
		_, err := lookPath(name)
		return err == nil
	}

	switch goos {
	case "darwin":
		if has("pbcopy") {
			return commandSpec{name: "pbcopy"}, nil
		}
		return commandSpec{}, ErrUnavailable
	case "windows":
		if has("clip") {
			return commandSpec{name: "clip"}, nil
		}
		return commandSpec{}, ErrUnavailable
	}

	candidates := []commandSpec{
		{name: "xclip", args: []string{"-selection", "clipboard", "-in", "-silent"}, detach: true},
		{name: "xsel", args: []string{"--clipboard", "--input"}},
	}
	if wayland {
		candidates = append([]commandSpec{{name: "wl-copy"}}, candidates...)
	} else {
		candidates = append(candidates, commandSpec{name: "wl-copy"})
	}

	for _, candidate := range candidates {
		if has(candidate.name) {
			return candidate, nil
		}
	}
	return commandSpec{}, ErrUnavailable
}

func copyWithDetachedCommand(spec commandSpec, value string) error {
	cmd := exec.Command(spec.name, spec.args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open clipboard stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start clipboard command: %w", err)
	}

	if _, err := io.WriteString(stdin, value); err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		return fmt.Errorf("write clipboard data: %w", err)
	}

	if err := stdin.Close(); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("close clipboard stdin: %w", err)
	}

	_ = cmd.Process.Release()
	return nil
}
