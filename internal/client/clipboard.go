package client

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ErrNoClipboard means no usable clipboard tool was found on this system.
var ErrNoClipboard = errors.New("client: no clipboard tool available")

// clipboard readers in preference order, per platform.
var clipboardTools = map[string][][]string{
	"linux": {
		{"wl-paste", "--no-newline"},
		{"xclip", "-selection", "clipboard", "-o"},
		{"xsel", "--clipboard", "--output"},
	},
	"darwin": {
		{"pbpaste"},
	},
}

// ReadClipboard returns the current clipboard text using the first
// available platform tool.
func ReadClipboard(ctx context.Context) (string, error) {
	tools, ok := clipboardTools[runtime.GOOS]
	if !ok {
		return "", fmt.Errorf("%w on %s", ErrNoClipboard, runtime.GOOS)
	}

	for _, tool := range tools {
		if _, err := exec.LookPath(tool[0]); err != nil {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		out, err := exec.CommandContext(cctx, tool[0], tool[1:]...).Output()
		cancel()
		if err != nil {
			continue
		}
		return strings.TrimRight(string(out), "\n"), nil
	}
	return "", ErrNoClipboard
}
