package display

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeXvfb writes a shell script standing in for Xvfb.
func fakeXvfb(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Xvfb")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestStartStop_Fake(t *testing.T) {
	m := &Manager{
		Bin:          fakeXvfb(t, "echo 42 >&3\nexec sleep 30"),
		ReadyTimeout: 5 * time.Second,
		StopTimeout:  5 * time.Second,
	}

	d, err := m.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, d.Number)
	require.Equal(t, ":42", d.Name())
	require.Equal(t, "DISPLAY=:42", d.Env())
	require.False(t, d.Exited())

	require.NoError(t, m.Stop(d))
	require.True(t, d.Exited())

	// Second stop is a no-op.
	require.NoError(t, m.Stop(d))
}

func TestStart_ExitsBeforeReady(t *testing.T) {
	m := &Manager{
		Bin:          fakeXvfb(t, "echo 'Fatal server error: no screens' >&2\nexit 1"),
		ReadyTimeout: 5 * time.Second,
	}

	_, err := m.Start(context.Background())
	require.ErrorIs(t, err, ErrStartFailed)
	require.ErrorContains(t, err, "no screens")
}

func TestStart_Timeout(t *testing.T) {
	m := &Manager{
		Bin:          fakeXvfb(t, "exec sleep 30"),
		ReadyTimeout: 200 * time.Millisecond,
	}

	start := time.Now()
	_, err := m.Start(context.Background())
	require.ErrorIs(t, err, ErrStartFailed)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestStart_Garbage(t *testing.T) {
	m := &Manager{
		Bin:          fakeXvfb(t, "echo banana >&3\nexec sleep 30"),
		ReadyTimeout: 5 * time.Second,
	}

	_, err := m.Start(context.Background())
	require.ErrorIs(t, err, ErrStartFailed)
	require.ErrorContains(t, err, "banana")
}

func TestStart_MissingBinary(t *testing.T) {
	m := &Manager{Bin: filepath.Join(t.TempDir(), "no-such-xvfb")}
	_, err := m.Start(context.Background())
	require.ErrorIs(t, err, ErrStartFailed)
}

func TestStop_IgnoresTerm(t *testing.T) {
	m := &Manager{
		Bin:          fakeXvfb(t, "trap '' TERM\necho 7 >&3\nwhile :; do sleep 1; done"),
		ReadyTimeout: 5 * time.Second,
		StopTimeout:  300 * time.Millisecond,
	}

	d, err := m.Start(context.Background())
	require.NoError(t, err)

	err = m.Stop(d)
	require.ErrorContains(t, err, "was killed")
	require.True(t, d.Exited())
}

func TestStartStop_Xvfb(t *testing.T) {
	bin, err := exec.LookPath("Xvfb")
	if err != nil {
		t.Skip("Xvfb not installed")
	}
	m := &Manager{Bin: bin, Screen: "640x480x24", ReadyTimeout: 10 * time.Second}

	d, err := m.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Stop(d))
}

func TestStart_SurvivesCallerThreadExit(t *testing.T) {
	m := &Manager{
		Bin:          fakeXvfb(t, "echo 7 >&3\nexec sleep 30"),
		ReadyTimeout: 5 * time.Second,
		StopTimeout:  5 * time.Second,
	}

	type started struct {
		d   *Display
		err error
	}
	res := make(chan started, 1)
	go func() {
		// Never unlocked, so the runtime retires this thread on return.
		runtime.LockOSThread()
		d, err := m.Start(context.Background())
		res <- started{d: d, err: err}
	}()
	r := <-res
	require.NoError(t, r.err)

	time.Sleep(300 * time.Millisecond)
	require.False(t, r.d.Exited(), "display died with the starting thread")
	require.NoError(t, m.Stop(r.d))
}
