package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

func TestExecutable(t *testing.T) {
	dir := t.TempDir()
	chrome := writeExecutable(t, dir, "fake-chrome")
	other := writeExecutable(t, dir, "other-chrome")
	t.Setenv("PATH", dir)

	tests := []struct {
		name       string
		override   string
		candidates []string
		want       string
		wantErr    bool
	}{
		{name: "first match wins", candidates: []string{"missing", "fake-chrome", "other-chrome"}, want: chrome},
		{name: "absolute candidate", candidates: []string{other}, want: other},
		{name: "override beats candidates", override: "other-chrome", candidates: []string{"fake-chrome"}, want: other},
		{name: "bad override is fatal", override: "missing", candidates: []string{"fake-chrome"}, wantErr: true},
		{name: "nothing resolves", candidates: []string{"missing"}, wantErr: true},
		{name: "no candidates", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Executable(tt.override, tt.candidates)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrNotFound))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestExecutable_NotExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chrome")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	_, err := Executable(path, nil)
	require.ErrorIs(t, err, ErrNotFound)
}
