// Package deps verifies that required external tools are available before the
// player starts.
package deps

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// Checker verifies that required binaries are on PATH.
type Checker struct {
	required []string
	optional []string
}

// NewChecker creates a checker. Required binaries fail the check; optional
// ones only produce a warning.
func NewChecker(required []string, optional []string) *Checker {
	return &Checker{required: required, optional: optional}
}

// IsAvailable checks if a single binary is available in PATH.
func (c *Checker) IsAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Check verifies all binaries, logging each required one and each missing
// optional one, and returns an error listing the missing required ones.
func (c *Checker) Check(log *zap.SugaredLogger) error {
	var missing []string

	for _, dep := range c.required {
		if c.IsAvailable(dep) {
			log.Debugf("found %s", dep)
		} else {
			log.Errorf("%s not found in PATH", dep)
			missing = append(missing, dep)
		}
	}
	for _, dep := range c.optional {
		if !c.IsAvailable(dep) {
			log.Warnf("%s not found in PATH; related features are disabled", dep)
		}
	}

	if len(missing) > 0 {
		return &MissingDepsError{Dependencies: missing}
	}
	return nil
}

// MissingDepsError is returned when required binaries are missing.
type MissingDepsError struct {
	Dependencies []string
}

func (e *MissingDepsError) Error() string {
	return fmt.Sprintf("missing dependencies: %v", e.Dependencies)
}
