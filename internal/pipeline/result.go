package pipeline

import "fmt"

// Phase labels the pipeline stage a subprocess ran in. The label appears in
// every failure message so the user can tell which of their commands, or
// which external tool, exited nonzero.
type Phase string

const (
	PhaseBefore  Phase = "Before"
	PhaseCompile Phase = "Compile"
	PhaseBackend Phase = "Backend"
	PhaseRun     Phase = "Run"
	PhaseElse    Phase = "Else"
	PhaseThen    Phase = "Then"
)

// PhaseError is the tagged failure result of a subprocess: which phase it
// belonged to, its exit code, and the command or tool involved. Callers
// branch on the type, never on raw exit integers.
type PhaseError struct {
	Phase    Phase
	ExitCode int
	Command  string
}

func (e *PhaseError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("%s phase failed: %q exited with code %d", e.Phase, e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s phase failed with exit code %d", e.Phase, e.ExitCode)
}
