package safeexec

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// LookPath searches PATH for an executable without using faccessat2, which
// is blocked by seccomp on some Android/Termux kernels and kills the process
// with SIGSYS. os.Stat only needs fstat.
func LookPath(file string) (string, error) {
	if strings.Contains(file, string(filepath.Separator)) {
		info, err := os.Stat(file)
		if err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return file, nil
		}
		return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
	}

	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			dir = "."
		}
		path := filepath.Join(dir, file)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return path, nil
		}
	}

	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}

// Command builds an exec.Cmd with the executable resolved via LookPath.
// Falls back to the bare name when resolution fails so the error surfaces
// at Run time.
func Command(name string, arg ...string) *exec.Cmd {
	path, err := LookPath(name)
	if err == nil {
		return exec.Command(path, arg...)
	}
	return exec.Command(name, arg...)
}
