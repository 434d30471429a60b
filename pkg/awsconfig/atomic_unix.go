//go:build !windows

package awsconfig

import (
	"os"

	"github.com/google/renameio/v2"
)

// writeFileAtomic replaces filename via temp file + rename so that readers
// never observe a truncated config file.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(filename, data, perm)
}
