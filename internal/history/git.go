package history

import (
	"context"
	"os/exec"
	"strings"
)

// ResolveCommit returns the abbreviated HEAD commit of the checkout holding
// projectRoot, or "" outside a git work tree or without git installed.
func ResolveCommit(ctx context.Context, projectRoot string) string {
	out, err := exec.CommandContext(ctx, "git", "-C", projectRoot, "rev-parse", "--short=12", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
