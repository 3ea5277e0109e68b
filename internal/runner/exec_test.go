package runner

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

func requireSh(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestExecSimpleCommand(t *testing.T) {
	sh := requireSh(t)

	result := Exec(context.Background(), ExecConfig{Path: sh, Args: []string{"-c", "echo hello"}})

	if !result.Success {
		t.Errorf("expected success, got error: %v", result.Error)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
	if !strings.Contains(result.Output, "hello") {
		t.Errorf("expected output to contain 'hello', got: %s", result.Output)
	}
}

func TestExecExitCode(t *testing.T) {
	sh := requireSh(t)

	result := Exec(context.Background(), ExecConfig{Path: sh, Args: []string{"-c", "echo oops >&2; exit 3"}})

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", result.ExitCode)
	}
	if !strings.Contains(result.Output, "oops") {
		t.Errorf("expected stderr in output, got: %q", result.Output)
	}
}

func TestExecMissingBinary(t *testing.T) {
	result := Exec(context.Background(), ExecConfig{Path: "/definitely/not/here/avrdude"})

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.ExitCode != -1 {
		t.Errorf("expected exit code -1, got %d", result.ExitCode)
	}
	if result.Error == nil {
		t.Error("expected an error")
	}
}

func TestExecEmptyPath(t *testing.T) {
	result := Exec(context.Background(), ExecConfig{})
	if result.Error == nil || result.Success {
		t.Errorf("expected error for empty path, got %+v", result)
	}
}

func TestExecWithDirAndEnv(t *testing.T) {
	sh := requireSh(t)
	dir := t.TempDir()

	result := Exec(context.Background(), ExecConfig{
		Path: sh,
		Args: []string{"-c", "pwd; echo $LED_TEST"},
		Dir:  dir,
		Env:  map[string]string{"LED_TEST": "radian"},
	})

	if !result.Success {
		t.Fatalf("expected success, got error: %v", result.Error)
	}
	if !strings.Contains(result.Output, "radian") {
		t.Errorf("expected env value in output, got: %q", result.Output)
	}
}

func TestExecStream(t *testing.T) {
	sh := requireSh(t)

	var (
		mu    sync.Mutex
		lines []string
	)
	result := Exec(context.Background(), ExecConfig{
		Path:   sh,
		Args:   []string{"-c", `printf 'Reading | ##\rReading | ####\nWriting\n'; echo err >&2`},
		Stream: true,
		OnLine: func(l string) {
			mu.Lock()
			lines = append(lines, l)
			mu.Unlock()
		},
	})

	if !result.Success {
		t.Fatalf("expected success, got error: %v", result.Error)
	}
	mu.Lock()
	defer mu.Unlock()
	joined := strings.Join(lines, "|")
	for _, want := range []string{"Reading | ##", "Reading | ####", "Writing", "err"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected line %q in %q", want, joined)
		}
	}
}

func TestExecCanceled(t *testing.T) {
	sh := requireSh(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	result := Exec(ctx, ExecConfig{Path: sh, Args: []string{"-c", "exec sleep 5"}})

	if result.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(result.Error, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", result.Error)
	}
	if result.Duration > 4*time.Second {
		t.Errorf("process was not killed, took %s", result.Duration)
	}
}

func TestScanLines(t *testing.T) {
	s := bufio.NewScanner(strings.NewReader("a\r\nb\rc\nd"))
	s.Split(scanLines)
	var got []string
	for s.Scan() {
		got = append(got, s.Text())
	}
	want := []string{"a", "b", "c", "d"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("scanLines = %q, want %q", got, want)
	}
}

func TestCommandLine(t *testing.T) {
	got := CommandLine("/tmp/avr dude/avrdude", []string{"-v", "-Uflash:w:/tmp/a.hex:i"})
	want := `"/tmp/avr dude/avrdude" -v -Uflash:w:/tmp/a.hex:i`
	if got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}
}
