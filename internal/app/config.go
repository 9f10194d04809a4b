package app

import "fmt"

// Command names accepted on the command line.
const (
	CommandBuild  = "build"
	CommandRun    = "run"
	CommandScript = "script"
)

// Config holds everything one invocation needs, merged from flags by the cli
// package. It is read-only once NewConfig has validated it.
type Config struct {
	// Command selects the flow: build, run or script.
	Command string
	// ScriptPath is the script to execute; script command only.
	ScriptPath string
	// ManifestPath locates the project manifest for build and run.
	ManifestPath string
	// MainModule is the entry module executed by run.
	MainModule string

	Watch            bool
	Clear            bool
	AllowIgnoredDirs bool
	DepsOnly         bool

	// Backend overrides the manifest's backend when non-empty.
	Backend string
	// CompilerArgs are passed through to the compiler verbatim.
	CompilerArgs []string

	// Tag and ScriptDeps feed the script cache key.
	Tag        string
	ScriptDeps []string

	// ExtraBefore/Then/Else are hook commands from flags, appended after the
	// manifest's hooks.
	ExtraBefore []string
	ExtraThen   []string
	ExtraElse   []string

	// ProgramArgs are forwarded to the executed program.
	ProgramArgs []string

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Command == "" {
		cfg.Command = CommandBuild
	}
	switch cfg.Command {
	case CommandBuild, CommandRun, CommandScript:
	default:
		return nil, fmt.Errorf("unknown command %q: expected build, run or script", cfg.Command)
	}
	if cfg.Command == CommandScript && cfg.ScriptPath == "" {
		return nil, fmt.Errorf("the script command requires a script path")
	}
	if cfg.Command == CommandScript && cfg.Watch {
		return nil, fmt.Errorf("watch mode is not available for the script command")
	}
	if len(cfg.ProgramArgs) > 0 && cfg.Command == CommandBuild {
		return nil, fmt.Errorf("the build command takes no program arguments")
	}
	if cfg.MainModule == "" {
		cfg.MainModule = "Main"
	}
	return &cfg, nil
}
