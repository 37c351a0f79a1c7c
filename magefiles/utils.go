//go:build mage

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/magefile/mage/mg"
)

type cmdOptions struct {
	args   []string
	env    []string
	stream bool
}

type cmdOption func(*cmdOptions)

func withArgs(args ...string) cmdOption {
	return func(o *cmdOptions) {
		o.args = args
	}
}

// withEnv appends KEY=VALUE pairs to the inherited environment.
func withEnv(env ...string) cmdOption {
	return func(o *cmdOptions) {
		o.env = append(o.env, env...)
	}
}

func withStream() cmdOption {
	return func(o *cmdOptions) {
		o.stream = true
	}
}

// cmdError keeps what a failed tool printed so callers can report it next to
// the file that caused it.
type cmdError struct {
	command string
	args    []string
	output  string
	err     error
}

func (e *cmdError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.command, strings.Join(e.args, " "), e.err)
	if out := strings.TrimSpace(e.output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *cmdError) Unwrap() error { return e.err }

func executeCmd(command string, options ...cmdOption) (string, error) {
	opts := &cmdOptions{}
	for _, o := range options {
		o(opts)
	}

	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("%s is not installed or not in PATH: %w", command, err)
	}

	fmt.Printf("Executing: %s %s\n", command, strings.Join(opts.args, " "))
	cmd := exec.Command(path, opts.args...)
	if len(opts.env) > 0 {
		cmd.Env = append(os.Environ(), opts.env...)
	}

	streamOutput := mg.Verbose() || opts.stream

	var b bytes.Buffer
	if streamOutput {
		cmd.Stdout = io.MultiWriter(&b, os.Stdout)
		cmd.Stderr = io.MultiWriter(&b, os.Stderr)
	} else {
		cmd.Stdout = &b
		cmd.Stderr = &b
	}
	if err := cmd.Run(); err != nil {
		output := b.String()
		if streamOutput {
			// Already on the terminal.
			output = ""
		}
		return "", &cmdError{command: command, args: opts.args, output: output, err: err}
	}
	return b.String(), nil
}

// isStale reports whether target is missing or older than source.
func isStale(source, target string) (bool, error) {
	tgt, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	src, err := os.Stat(source)
	if err != nil {
		return false, err
	}
	return src.ModTime().After(tgt.ModTime()), nil
}
