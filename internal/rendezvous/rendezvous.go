// Package rendezvous creates and locates the zero-byte rendezvous file
// that seeds the shared-memory key derivation and serves as the
// advisory-lock target.
package rendezvous

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// DefaultDir is the default directory for rendezvous files.
const DefaultDir = "/var/tmp/"

// Path joins dir, name, and identifier into the rendezvous file path
// "{dir}{name}.{identifier}".
func Path(dir, name, identifier string) string {
	if dir == "" {
		dir = DefaultDir
	}

	return filepath.Join(dir, fmt.Sprintf("%s.%s", name, identifier))
}

// EnsureExists creates an empty rendezvous file at path if absent. The
// write uses an atomic rename so a concurrent opener never observes a
// partially created file.
func EnsureExists(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("rendezvous: stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("rendezvous: mkdir %s: %w", filepath.Dir(path), err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(nil)); err != nil {
		return fmt.Errorf("rendezvous: create %s: %w", path, err)
	}

	return nil
}
