package frontend

import (
	"fmt"
	"os"
)

// FileReader reads a raw capture dump from disk.
type FileReader struct {
	Path string
}

// ReadRaw returns the dump file's contents.
func (r FileReader) ReadRaw() ([]byte, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	return data, nil
}
