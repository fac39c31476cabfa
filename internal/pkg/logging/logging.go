package logging

import (
	"io"
	"log/slog"
	"os"
)

// New release 模式输出 JSON，其余模式输出文本并打开 DEBUG
func New(mode string) *slog.Logger {
	return newWithWriter(mode, os.Stdout)
}

func newWithWriter(mode string, w io.Writer) *slog.Logger {
	if mode == "release" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
