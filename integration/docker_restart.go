//go:build integration

package integration

import (
	"context"
	"os/exec"
	"testing"
)

// restartService bounces one docker compose service, e.g. the API, so a test
// can check what survived the process.
func restartService(t *testing.T, ctx context.Context, service string) {
	t.Helper()

	cmd := exec.CommandContext(ctx, "docker", "compose", "restart", service)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("docker compose restart %s failed: %v\n%s", service, err, string(out))
	}
}
