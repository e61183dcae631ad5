// Package cli is a wrapper around the bringup CLI
package cli

import (
	"bytes"
	"io"
	"os"
	"os/exec"
)

type Command struct {
	bin    string
	ns     string
	dir    string
	stdout bool
}

func New(bin string, ns string) Command {
	return Command{bin: bin, ns: ns}
}

func (c Command) Namespace(ns string) Command {
	n := c
	n.ns = ns
	return n
}

func (c Command) Stdout(enable bool) Command {
	n := c
	n.stdout = enable
	return n
}

func (c Command) Workdir(dir string) Command {
	n := c
	n.dir = dir
	return n
}

func (c Command) Up(args ...string) (string, error) {
	return c.Run(append([]string{"up"}, args...)...)
}

func (c Command) Compose(args ...string) (string, error) {
	return c.Run(append([]string{"compose"}, args...)...)
}

func (c Command) Resolve(args ...string) (string, error) {
	return c.Run(append([]string{"resolve"}, args...)...)
}

func (c Command) Smoke(args ...string) (string, error) {
	return c.Run(append([]string{"smoke"}, args...)...)
}

func (c Command) Run(args ...string) (string, error) {
	if c.ns != "" {
		args = append([]string{"--namespace", c.ns}, args...)
	}

	cmd := exec.Command(c.bin, args...)

	var b bytes.Buffer
	if c.stdout {
		cmd.Stdout = io.MultiWriter(os.Stdout, &b)
		cmd.Stderr = io.MultiWriter(os.Stderr, &b)
	} else {
		cmd.Stdout = &b
		cmd.Stderr = &b
	}

	if c.dir != "" {
		cmd.Dir = c.dir
	}

	err := cmd.Run()
	return b.String(), err
}
