//go:build windows

package awsconfig

import "os"

// renameio does not support Windows, fall back to a plain rewrite.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}
