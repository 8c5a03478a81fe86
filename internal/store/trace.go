package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// TraceEntry is one point of a fit's cost history, serialized as a
// JSON line in trace.jsonl.
type TraceEntry struct {
	// Round is the optimizer round number.
	Round int `json:"round"`

	// Cost is the best cost after this round.
	Cost float64 `json:"cost"`

	// Timestamp records when this entry was created.
	Timestamp time.Time `json:"timestamp"`

	// Params is the best parameter vector at this round; nil keeps
	// the trace small.
	Params []float64 `json:"params,omitempty"`
}

// TracePath returns the live trace file for a session.
func TracePath(baseDir, id string) string {
	return filepath.Join(baseDir, "sessions", id, "trace.jsonl")
}

// ArchivedTracePath returns the compressed trace for a session.
func ArchivedTracePath(baseDir, id string) string {
	return TracePath(baseDir, id) + ".zst"
}

// TraceWriter writes trace entries to a JSONL file. It uses buffered
// I/O and is safe for concurrent use.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewTraceWriter creates a trace writer for the given session. When
// appendTo is true, new entries extend an existing trace, which is
// what a resumed fit wants.
func NewTraceWriter(baseDir, id string, appendTo bool) (*TraceWriter, error) {
	dir := filepath.Join(baseDir, "sessions", id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	path := TracePath(baseDir, id)
	var file *os.File
	var err error
	if appendTo {
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	} else {
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write appends a trace entry. The entry is buffered until Flush or
// Close.
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Flush writes buffered data through to disk.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the trace file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// TraceReader reads trace entries from a live JSONL trace or, when
// only the compressed archive remains, transparently from that.
type TraceReader struct {
	closer  io.Closer
	scanner *bufio.Scanner
}

// NewTraceReader opens the trace for the given session, preferring the
// live file and falling back to the zstd archive.
func NewTraceReader(baseDir, id string) (*TraceReader, error) {
	file, err := os.Open(TracePath(baseDir, id))
	if err == nil {
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		return &TraceReader{closer: file, scanner: scanner}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	compressed, err := os.ReadFile(ArchivedTracePath(baseDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to read trace archive: %w", err)
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()
	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress trace archive: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &TraceReader{scanner: scanner}, nil
}

// Read returns the next trace entry, or io.EOF when exhausted.
func (tr *TraceReader) Read() (*TraceEntry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry TraceEntry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads the remaining trace entries.
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Close closes the underlying file, if any.
func (tr *TraceReader) Close() error {
	if tr.closer == nil {
		return nil
	}
	if err := tr.closer.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// ArchiveTrace compresses a finished session's trace.jsonl to
// trace.jsonl.zst and removes the original. An existing archive is
// extended rather than replaced: the new rounds are appended as an
// extra zstd frame, which the decoder reads as one stream. Archiving
// an absent trace is a no-op.
func ArchiveTrace(baseDir, id string) error {
	livePath := TracePath(baseDir, id)
	raw, err := os.ReadFile(livePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read trace file: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	compressed := encoder.EncodeAll(raw, nil)
	encoder.Close()

	archivePath := ArchivedTracePath(baseDir, id)
	existing, err := os.ReadFile(archivePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read trace archive: %w", err)
	}

	tempPath := archivePath + ".tmp"
	if err := os.WriteFile(tempPath, append(existing, compressed...), 0644); err != nil {
		return fmt.Errorf("failed to write trace archive: %w", err)
	}
	if err := os.Rename(tempPath, archivePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename trace archive: %w", err)
	}
	if err := os.Remove(livePath); err != nil {
		return fmt.Errorf("failed to remove live trace: %w", err)
	}
	return nil
}

// DeleteTrace removes both trace forms for a session. Missing files
// are not an error.
func DeleteTrace(baseDir, id string) error {
	for _, path := range []string{TracePath(baseDir, id), ArchivedTracePath(baseDir, id)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete trace file: %w", err)
		}
	}
	return nil
}
