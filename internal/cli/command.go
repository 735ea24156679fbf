package cli

import (
	"fmt"
	"os"

	"github.com/copilotstream/copilot-sdk-go/internal/config"
)

// Command represents the CLI command to execute.
type Command struct {
	// Path is the resolved CLI binary path.
	Path string

	// Args are the command line arguments.
	Args []string

	// Env are the environment variables.
	Env []string

	// Dir is the working directory. Empty means inherit.
	Dir string
}

// BuildCommand assembles the invocation that runs the CLI as a headless
// stdio server.
func BuildCommand(cliPath string, options *config.Options) *Command {
	return &Command{
		Path: cliPath,
		Args: BuildArgs(),
		Env:  BuildEnvironment(options),
		Dir:  options.Cwd,
	}
}

// BuildArgs constructs the CLI command arguments.
//
// The CLI is always run headless with auto-update disabled, speaking
// the framed protocol over stdio.
func BuildArgs() []string {
	return []string{
		"--headless",
		"--no-auto-update",
		"--stdio",
	}
}

// BuildEnvironment constructs the environment variables for the CLI process.
func BuildEnvironment(options *config.Options) []string {
	// Start with current environment
	env := os.Environ()

	env = append(env, "COPILOT_SDK_VERSION=0.1.0")
	env = append(env, "COPILOT_ENTRYPOINT=sdk-go")

	// Add or override with user-provided environment variables
	for key, value := range options.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}
