//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another relay process is alive.
var ErrAlreadyRunning = errors.New("another instance is already running")

// EnsureSingleInstance fails when another process runs the same executable.
func EnsureSingleInstance() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	processList, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	return checkDuplicates(os.Getpid(), filepath.Base(executable), processList)
}

// checkDuplicates looks for a process other than self named executable.
func checkDuplicates(self int, executable string, processList []ps.Process) error {
	for _, process := range processList {
		if process.Pid() == self || process.Executable() != executable {
			continue
		}

		return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, executable, process.Pid())
	}

	return nil
}
