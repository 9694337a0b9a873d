// Package logtail reads the end of the client log.
//
// # Overview
//
// Crash reports carry the last lines the client logged before the failure.
// The log file can grow without bound between rotations, so Lines reads
// backwards from the end of the file in fixed-size blocks and stops as soon
// as enough line breaks have been seen. Memory use is bounded by the number
// of lines requested, not by the size of the file.
//
// Example usage:
//
//	lines, err := logtail.Lines(logPath, 200)
//	if err != nil {
//		logger.Warn("read log tail", "error", err)
//	}
//
// # Limits
//
// A single tail never returns more than MaxBytes of text. When the limit is
// hit the oldest partial line is dropped so every returned line is whole.
//
// # Error Handling
//
// A missing file yields nil, nil: a client that has not logged anything yet
// still produces a report. Other I/O errors are returned wrapped.
package logtail
