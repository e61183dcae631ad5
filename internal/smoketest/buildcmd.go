package smoketest

import (
	"context"
	"fmt"
	"os/exec"
)

// BuildCommand is a thin wrapper around a Bazel-compatible build client.
// The zero flags route everything through the resolved gateways.
type BuildCommand struct {
	client   string
	dir      string
	cache    string
	executor string
	instance string
}

func NewBuildCommand(client string) BuildCommand {
	return BuildCommand{client: client}
}

func (c BuildCommand) Workdir(dir string) BuildCommand {
	n := c
	n.dir = dir
	return n
}

func (c BuildCommand) RemoteCache(addr string) BuildCommand {
	n := c
	n.cache = addr
	return n
}

func (c BuildCommand) RemoteExecutor(addr string) BuildCommand {
	n := c
	n.executor = addr
	return n
}

func (c BuildCommand) InstanceName(name string) BuildCommand {
	n := c
	n.instance = name
	return n
}

// Args returns the full argument list for a build of target.
func (c BuildCommand) Args(target string) []string {
	args := []string{"build"}
	if c.cache != "" {
		args = append(args, fmt.Sprintf("--remote_cache=grpc://%s", c.cache))
	}
	if c.executor != "" {
		args = append(args, fmt.Sprintf("--remote_executor=grpc://%s", c.executor))
	}
	if c.instance != "" {
		args = append(args, fmt.Sprintf("--remote_instance_name=%s", c.instance))
	}
	return append(args, target)
}

func (c BuildCommand) Build(ctx context.Context, target string) (string, error) {
	cmd := exec.CommandContext(ctx, c.client, c.Args(target)...)
	cmd.Dir = c.dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
