// Package runner runs external tools (avrdude, the driver installer) and
// captures their output.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ExecConfig contains configuration for executing a single command.
type ExecConfig struct {
	Path   string            // Executable to run
	Args   []string          // Arguments, passed without a shell
	Dir    string            // Working directory
	Env    map[string]string // Extra environment variables
	Stream bool              // Deliver output line by line to OnLine while running
	OnLine func(line string) // Called for each output line when Stream is set
}

// ExecResult contains the result of executing a single command.
type ExecResult struct {
	Command  string
	ExitCode int
	Success  bool
	Output   string
	Duration time.Duration
	Error    error
}

// Runner executes commands. Flash and driver code take a Runner so tests
// can substitute a fake.
type Runner interface {
	Exec(ctx context.Context, cfg ExecConfig) ExecResult
}

// Local runs commands on this machine.
type Local struct{}

// Exec implements Runner.
func (Local) Exec(ctx context.Context, cfg ExecConfig) ExecResult {
	return Exec(ctx, cfg)
}

// Exec executes a single command with the given configuration. ExitCode is
// -1 when the process could not be started.
func Exec(ctx context.Context, config ExecConfig) ExecResult {
	startTime := time.Now()

	result := ExecResult{
		Command:  CommandLine(config.Path, config.Args),
		ExitCode: -1,
	}
	if config.Path == "" {
		result.Error = fmt.Errorf("empty command")
		return result
	}

	cmd := exec.CommandContext(ctx, config.Path, config.Args...)
	cmd.WaitDelay = 2 * time.Second
	if config.Dir != "" {
		cmd.Dir = config.Dir
	}
	if len(config.Env) > 0 {
		cmd.Env = append([]string{}, os.Environ()...)
		for k, v := range config.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	var err error
	if config.Stream {
		result.Output, err = runStreaming(cmd, config.OnLine)
	} else {
		var out []byte
		out, err = cmd.CombinedOutput()
		result.Output = string(out)
	}
	result.Duration = time.Since(startTime)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		result.Error = err
		return result
	}

	result.Success = true
	result.ExitCode = 0
	return result
}

func runStreaming(cmd *exec.Cmd, onLine func(string)) (string, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start command: %w", err)
	}

	var (
		mu     sync.Mutex
		output strings.Builder
		wg     sync.WaitGroup
	)
	read := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Split(scanLines)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			output.WriteString(line + "\n")
			if onLine != nil {
				onLine(line)
			}
			mu.Unlock()
		}
	}
	wg.Add(2)
	go read(stdout)
	go read(stderr)

	// pipes must be drained before Wait closes them
	wg.Wait()
	err = cmd.Wait()
	return output.String(), err
}

// scanLines splits on \n and on bare \r, which avrdude uses for its
// progress bars.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance = i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		} else if data[i] == '\r' && i+1 == len(data) && !atEOF {
			// need more data to know whether \n follows
			return 0, nil, nil
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// CommandLine renders argv for logs and error messages, quoting arguments
// that contain spaces.
func CommandLine(path string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{path}, args...) {
		if a == "" || strings.ContainsAny(a, " \t\"") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
