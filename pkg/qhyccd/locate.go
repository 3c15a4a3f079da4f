package qhyccd

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultSearchLevels is how many directories above the executable's own
// directory the SDK folder is expected, matching a build/<config>/binary
// layout.
const DefaultSearchLevels = 2

// LibraryFile returns the platform file name of the SDK library.
func LibraryFile(goos string) string {
	switch goos {
	case "windows":
		return "qhyccd.dll"
	case "darwin":
		return "libqhyccd.dylib"
	default:
		return "libqhyccd.so"
	}
}

// ArchDir returns the sdk/ subdirectory used for a GOARCH value.
func ArchDir(goarch string) string {
	switch goarch {
	case "amd64":
		return "x64"
	case "386":
		return "x86"
	default:
		return goarch
	}
}

// RelativePath is the fallback location, resolved by the platform loader
// against the working directory and its search path.
func RelativePath() string {
	return filepath.Join("sdk", ArchDir(runtime.GOARCH), LibraryFile(runtime.GOOS))
}

// ResolvePath walks up levels directories from the directory containing exe
// and appends sdk/<arch>/<library file>. An empty exe yields RelativePath.
func ResolvePath(exe string, levels int) string {
	if exe == "" {
		return RelativePath()
	}
	root := filepath.Dir(exe)
	for i := 0; i < levels; i++ {
		parent := filepath.Dir(root)
		if parent == root {
			break
		}
		root = parent
	}
	return filepath.Join(root, RelativePath())
}

// DefaultPath locates the SDK relative to the running executable.
func DefaultPath() string {
	return PathFor(DefaultSearchLevels)
}

// PathFor is DefaultPath with a custom number of levels.
func PathFor(levels int) string {
	exe, err := os.Executable()
	if err != nil {
		return RelativePath()
	}
	if resolved, evalErr := filepath.EvalSymlinks(exe); evalErr == nil {
		exe = resolved
	}
	return ResolvePath(exe, levels)
}
