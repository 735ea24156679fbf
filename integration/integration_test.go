//go:build integration

package integration

import (
	"errors"
	"strings"
	"testing"

	copilotsdk "github.com/copilotstream/copilot-sdk-go"
)

// skipIfCLINotInstalled skips the test if the error indicates the CLI is
// not found.
func skipIfCLINotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*copilotsdk.CLINotFoundError](err); ok {
		t.Skip("copilot CLI not installed")
	}
}

// contains4 checks if a string contains "4" in common spellings.
func contains4(s string) bool {
	lower := strings.ToLower(s)

	return strings.Contains(lower, "4") || strings.Contains(lower, "four")
}
