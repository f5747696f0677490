package infra

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

// NoopRedactor passes artifacts through unchanged. Used when no
// redaction tool is configured.
type NoopRedactor struct{}

// RedactSensitiveRegions marks the artifact redacted without touching it.
func (NoopRedactor) RedactSensitiveRegions(_ context.Context, a domain.Artifact) (domain.Artifact, error) {
	a.Redacted = true
	return a, nil
}

// CommandRedactor invokes an external tool that masks sensitive
// regions in place. The artifact path is appended to the arguments.
type CommandRedactor struct {
	command string
	args    []string
}

// NewCommandRedactor wraps an external redaction command.
func NewCommandRedactor(command string, args ...string) *CommandRedactor {
	return &CommandRedactor{command: command, args: args}
}

// RedactSensitiveRegions runs the tool against the artifact. A failed
// run leaves the artifact unusable for classification.
func (r *CommandRedactor) RedactSensitiveRegions(ctx context.Context, a domain.Artifact) (domain.Artifact, error) {
	args := append(append([]string{}, r.args...), a.Path)
	if err := exec.CommandContext(ctx, r.command, args...).Run(); err != nil {
		return domain.Artifact{}, fmt.Errorf("redact %s: %w", a.Path, err)
	}
	a.Redacted = true
	return a, nil
}

// RedactorFromCommand builds the redactor for a whitespace-separated
// command spec. An empty spec yields the pass-through redactor.
func RedactorFromCommand(spec string) domain.Redactor {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return NoopRedactor{}
	}
	return NewCommandRedactor(fields[0], fields[1:]...)
}

var (
	_ domain.Redactor = NoopRedactor{}
	_ domain.Redactor = (*CommandRedactor)(nil)
)
