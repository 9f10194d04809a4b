package app

import (
	"io"
	"log/slog"

	"pursbuild/internal/pipeline"
)

// App owns one invocation's dependencies and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	exec   pipeline.Execer
}

// NewApp constructs the application with an isolated logger. The exec
// parameter may be nil, selecting real subprocesses; tests inject a fake.
func NewApp(outW io.Writer, config *Config, exec pipeline.Execer) *App {
	if exec == nil {
		exec = pipeline.System()
	}
	return &App{
		outW:   outW,
		logger: newLogger(config.LogLevel, config.LogFormat, outW),
		config: config,
		exec:   exec,
	}
}
