package lockd

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// anotherInstanceRunning reports whether a process with the same executable
// name as this one, other than this one, is alive.
func anotherInstanceRunning() (bool, int, error) {
	self, err := os.Executable()
	if err != nil {
		return false, 0, err
	}

	return processRunning(filepath.Base(self), os.Getpid())
}

// processRunning looks for a process called name, ignoring the PID skip.
func processRunning(name string, skip int) (bool, int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return false, 0, err
	}

	for _, process := range processList {
		if process.Pid() == skip {
			continue
		}

		if process.Executable() == name {
			return true, process.Pid(), nil
		}
	}

	return false, 0, nil
}
