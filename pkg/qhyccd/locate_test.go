package qhyccd

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestLibraryFile(t *testing.T) {
	tests := map[string]string{
		"windows": "qhyccd.dll",
		"darwin":  "libqhyccd.dylib",
		"linux":   "libqhyccd.so",
		"freebsd": "libqhyccd.so",
	}
	for goos, want := range tests {
		if got := LibraryFile(goos); got != want {
			t.Errorf("LibraryFile(%q) = %q, want %q", goos, got, want)
		}
	}
}

func TestArchDir(t *testing.T) {
	tests := map[string]string{
		"amd64": "x64",
		"386":   "x86",
		"arm64": "arm64",
		"arm":   "arm",
	}
	for goarch, want := range tests {
		if got := ArchDir(goarch); got != want {
			t.Errorf("ArchDir(%q) = %q, want %q", goarch, got, want)
		}
	}
}

func TestResolvePath(t *testing.T) {
	lib := filepath.Join("sdk", ArchDir(runtime.GOARCH), LibraryFile(runtime.GOOS))
	root := filepath.FromSlash("/opt/qhynode")
	exe := filepath.Join(root, "build", "release", "qhynode")

	tests := []struct {
		name   string
		exe    string
		levels int
		want   string
	}{
		{"two levels", exe, 2, filepath.Join(root, lib)},
		{"zero levels", exe, 0, filepath.Join(root, "build", "release", lib)},
		{"no executable", "", 2, lib},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePath(tt.exe, tt.levels); got != tt.want {
				t.Errorf("ResolvePath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolvePathStopsAtRoot(t *testing.T) {
	exe := filepath.FromSlash("/qhynode")
	got := ResolvePath(exe, 10)
	want := filepath.Join(filepath.Dir(exe), RelativePath())
	if got != want {
		t.Errorf("ResolvePath() = %q, want %q", got, want)
	}
}
