package proc

import (
	"bytes"
	"context"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX tools")
	}
}

func TestRunSuccessAndFailure(t *testing.T) {
	skipWindows(t)
	sup := NewSupervisor(nil)

	res := sup.Run(context.Background(), "ok", Command{Program: "true"}, &bytes.Buffer{})
	assert.True(t, res.OK())
	assert.Equal(t, 0, res.ExitCode)

	res = sup.Run(context.Background(), "fail", Shell("exit 3"), &bytes.Buffer{})
	assert.False(t, res.OK())
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.NotFound())
	assert.Empty(t, sup.Running())
}

func TestRunMissingExecutable(t *testing.T) {
	sup := NewSupervisor(nil)
	res := sup.Run(context.Background(), "ghost", Command{Program: "definitely-not-installed-xyz"}, &bytes.Buffer{})
	require.Error(t, res.Err)
	assert.True(t, res.NotFound())
	assert.Equal(t, -1, res.ExitCode)
}

func TestRunMergesOutput(t *testing.T) {
	skipWindows(t)
	var out bytes.Buffer
	res := NewSupervisor(nil).Run(context.Background(), "merge", Shell("echo out; echo err >&2"), &out)
	require.True(t, res.OK())
	assert.Contains(t, out.String(), "out\n")
	assert.Contains(t, out.String(), "err\n")
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewSupervisor(nil).Run(ctx, "late", Command{Program: "true"}, &bytes.Buffer{})
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestRunPipeline(t *testing.T) {
	skipWindows(t)
	var out bytes.Buffer
	sup := NewSupervisor(nil)
	res := sup.RunPipeline(context.Background(), "pipe",
		Command{Program: "echo", Args: []string{"0000"}},
		Command{Program: "cat"},
		&out)
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, "0000\n", out.String())
	assert.Empty(t, sup.Running())
}

func TestRunPipelineSharedSinkAllStreams(t *testing.T) {
	skipWindows(t)
	var out bytes.Buffer
	res := NewSupervisor(nil).RunPipeline(context.Background(), "pipe",
		Shell("for i in 1 2 3 4 5; do echo 0000; echo producer-err >&2; done"),
		Shell("while read l; do echo got-$l; echo consumer-err >&2; done"),
		&out)
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, 5, strings.Count(out.String(), "got-0000"))
	assert.Equal(t, 5, strings.Count(out.String(), "producer-err"))
	assert.Equal(t, 5, strings.Count(out.String(), "consumer-err"))
}

func TestSyncWriterKeepsFiles(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "sink")
	require.NoError(t, err)
	defer f.Close()
	assert.Same(t, f, syncWriter(f))
	assert.IsType(t, &lockedWriter{}, syncWriter(&bytes.Buffer{}))
}

func TestRunNoTTYDoesNotStopOnTerminalRead(t *testing.T) {
	skipWindows(t)
	var out bytes.Buffer
	done := make(chan Result, 1)
	go func() {
		c := Shell("read x </dev/tty && echo got")
		c.NoTTY = true
		done <- NewSupervisor(nil).Run(context.Background(), "tty", c, &out)
	}()
	select {
	case res := <-done:
		assert.False(t, res.OK())
		assert.NotContains(t, out.String(), "got")
	case <-time.After(5 * time.Second):
		t.Fatal("child reading /dev/tty did not return")
	}
}

func TestRunPipelineConsumerDecides(t *testing.T) {
	skipWindows(t)
	res := NewSupervisor(nil).RunPipeline(context.Background(), "pipe",
		Command{Program: "echo", Args: []string{"0000"}},
		Shell("cat >/dev/null; exit 5"),
		&bytes.Buffer{})
	assert.False(t, res.OK())
	assert.Equal(t, 5, res.ExitCode)
}

func TestStopAllInterruptsChildren(t *testing.T) {
	skipWindows(t)
	sup := NewSupervisor(nil)
	done := make(chan Result, 1)
	go func() {
		done <- sup.Run(context.Background(), "sleeper", Command{Program: "sleep", Args: []string{"30"}}, &bytes.Buffer{})
	}()
	require.Eventually(t, func() bool { return len(sup.Running()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"sleeper"}, sup.Running())

	require.NoError(t, sup.StopAll(context.Background()))
	select {
	case res := <-done:
		assert.False(t, res.OK())
	case <-time.After(5 * time.Second):
		t.Fatal("sleeper was not stopped")
	}
	assert.Empty(t, sup.Running())
}

func TestStartRejectsDuplicateName(t *testing.T) {
	skipWindows(t)
	sup := NewSupervisor(nil)
	first := Command{Program: "sleep", Args: []string{"5"}}.build()
	ch, err := sup.Start("dup", first)
	require.NoError(t, err)
	defer func() {
		_ = kill(ch.Cmd)
		sup.Wait(ch)
	}()

	_, err = sup.Start("dup", Command{Program: "true"}.build())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already started"))
}

func TestAvailable(t *testing.T) {
	skipWindows(t)
	p, ok := Available("sh")
	assert.True(t, ok)
	assert.NotEmpty(t, p)

	_, ok = Available("definitely-not-installed-xyz")
	assert.False(t, ok)
}

func TestCommandString(t *testing.T) {
	c := Command{Program: "ssh", Args: []string{"-p", "80", "a.pinggy.io"}}
	assert.Equal(t, "ssh -p 80 a.pinggy.io", c.String())
	assert.Equal(t, "ssh", Command{Program: "ssh"}.String())
}
