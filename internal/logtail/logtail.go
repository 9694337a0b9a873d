package logtail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	blockSize = 8 * 1024
	// MaxBytes caps the text a single tail returns.
	MaxBytes = 256 * 1024
)

// Lines returns at most maxLines whole lines from the end of the file at
// path, oldest first. maxLines <= 0 returns nothing.
func Lines(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log: %w", err)
	}

	tail, truncated, err := readTail(file, info.Size(), maxLines)
	if err != nil {
		return nil, err
	}
	return split(tail, maxLines, truncated), nil
}

// String is Lines joined with newlines.
func String(path string, maxLines int) (string, error) {
	lines, err := Lines(path, maxLines)
	if err != nil || len(lines) == 0 {
		return "", err
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// readTail reads blocks backwards from size until it holds more than
// maxLines line breaks, reaches the start of the file or hits MaxBytes.
// truncated reports whether the returned bytes begin mid-line.
func readTail(r io.ReaderAt, size int64, maxLines int) ([]byte, bool, error) {
	var (
		buf    []byte
		offset = size
		breaks int
	)
	for offset > 0 && breaks <= maxLines && len(buf) < MaxBytes {
		n := int64(blockSize)
		if n > offset {
			n = offset
		}
		offset -= n
		block := make([]byte, n)
		if _, err := r.ReadAt(block, offset); err != nil && !errors.Is(err, io.EOF) {
			return nil, false, fmt.Errorf("read log: %w", err)
		}
		breaks += bytes.Count(block, []byte{'\n'})
		buf = append(block, buf...)
	}
	truncated := offset > 0
	if len(buf) > MaxBytes {
		buf = buf[len(buf)-MaxBytes:]
		truncated = true
	}
	return buf, truncated, nil
}

func split(buf []byte, maxLines int, truncated bool) []string {
	text := strings.TrimRight(string(buf), "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if truncated && len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
