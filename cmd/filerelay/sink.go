package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/blockrelay/filerelay/internal/constants"
)

// dirSink persists received blobs under a fixed directory. It keeps only
// the base name of each filename, so a name cannot escape the directory,
// and substitutes a default name for an empty or ".."-prefixed one.
type dirSink struct {
	dir string
}

func newDirSink(dir string) *dirSink {
	return &dirSink{dir: dir}
}

func (s *dirSink) Store(filename string, data []byte) error {
	clean := filepath.Base(filepath.Clean(filename))
	if clean == "." || clean == "" || clean == string(filepath.Separator) {
		clean = "blob" + constants.ReceivedBlobsFileSuffix
	}
	if strings.HasPrefix(clean, "..") {
		clean = "blob" + constants.ReceivedBlobsFileSuffix
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return err
	}
	dest := filepath.Join(s.dir, clean)
	return os.WriteFile(dest, data, 0o640)
}
