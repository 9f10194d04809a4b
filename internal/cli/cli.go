package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"pursbuild/internal/app"
	"pursbuild/internal/manifest"
)

// ExitError is an error carrying the process exit code to use.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// Parse processes command-line arguments. It returns a validated app.Config,
// a boolean indicating the program should exit cleanly (help was printed),
// or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("pursbuild", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
pursbuild - compile, watch and run PureScript-style projects.

Usage:
  pursbuild [options] [COMMAND]

Commands:
  build            Compile the project (default).
  run              Compile the project, then execute its entry module.
  script PATH      Run a standalone script in a cached scratch project.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", manifest.DefaultPath, "Path to the project manifest.")
	watchFlag := flagSet.Bool("watch", false, "Rebuild whenever watched source files change.")
	clearFlag := flagSet.Bool("clear", false, "Clear the terminal before each watch-mode rebuild.")
	allowIgnoredFlag := flagSet.Bool("allow-ignored", false, "Watch directories that are ignored by default (.git, node_modules, ...).")
	depsOnlyFlag := flagSet.Bool("deps-only", false, "Compile only the declared dependencies, not the project sources.")
	backendFlag := flagSet.String("backend", "", "Alternate backend command, overriding the manifest.")
	pursArgsFlag := flagSet.String("purs-args", "", "Extra arguments passed through to the compiler, whitespace separated.")
	mainFlag := flagSet.String("main", "Main", "Entry module for the run command.")
	tagFlag := flagSet.String("tag", "", "Cache discriminator for the script command.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")

	var before, then, elseHooks, scriptDeps stringList
	flagSet.Var(&before, "before", "Shell command run before the build. Repeatable.")
	flagSet.Var(&then, "then", "Shell command run after a successful build. Repeatable.")
	flagSet.Var(&elseHooks, "else", "Shell command run after a failed build. Repeatable.")
	flagSet.Var(&scriptDeps, "dep", "Dependency of the script command. Repeatable.")

	// Flags are accepted on either side of the command name (and of the
	// script path), so `pursbuild build --watch` and `pursbuild --watch
	// build` mean the same thing. Each positional is extracted and the
	// remainder handed back to the flag set.
	parseFlags := func(a []string) ([]string, bool, error) {
		if err := flagSet.Parse(a); err != nil {
			if err == flag.ErrHelp {
				return nil, true, nil
			}
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		return flagSet.Args(), false, nil
	}

	rest, helped, err := parseFlags(args)
	if helped || err != nil {
		return nil, helped, err
	}

	command := app.CommandBuild
	if len(rest) > 0 {
		command = rest[0]
		rest, helped, err = parseFlags(rest[1:])
		if helped || err != nil {
			return nil, helped, err
		}
	}
	scriptPath := ""
	if command == app.CommandScript {
		if len(rest) == 0 {
			return nil, false, &ExitError{Code: 2, Message: "the script command requires a script path"}
		}
		scriptPath = rest[0]
		rest, helped, err = parseFlags(rest[1:])
		if helped || err != nil {
			return nil, helped, err
		}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg := app.Config{
		Command:          command,
		ScriptPath:       scriptPath,
		ManifestPath:     *configFlag,
		MainModule:       *mainFlag,
		Watch:            *watchFlag,
		Clear:            *clearFlag,
		AllowIgnoredDirs: *allowIgnoredFlag,
		DepsOnly:         *depsOnlyFlag,
		Backend:          *backendFlag,
		CompilerArgs:     strings.Fields(*pursArgsFlag),
		Tag:              *tagFlag,
		ScriptDeps:       scriptDeps,
		ExtraBefore:      before,
		ExtraThen:        then,
		ExtraElse:        elseHooks,
		LogFormat:        logFormat,
		LogLevel:         logLevel,
	}
	// The flag set already stopped at a `--` separator, so whatever is left
	// over belongs to the program: `pursbuild run -- --port 8080`. Program
	// arguments that do not look like flags need no separator.
	cfg.ProgramArgs = rest

	validated, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return validated, false, nil
}
