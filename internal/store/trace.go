package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TraceEntry is one line of the score history trace, serialized as JSONL.
type TraceEntry struct {
	// Iteration is the optimization iteration number.
	Iteration int `json:"iteration"`

	// BestScore is the best score at this iteration.
	BestScore float64 `json:"bestScore"`

	// AcceptanceRatio is the rolling-window acceptance ratio at this
	// iteration.
	AcceptanceRatio float64 `json:"acceptanceRatio"`

	// Timestamp records when this entry was created.
	Timestamp time.Time `json:"timestamp"`

	// Solution is the best solution at this iteration. Optional; nil keeps
	// the trace small.
	Solution []float64 `json:"solution,omitempty"`
}

func tracePath(baseDir, jobID string) string {
	return filepath.Join(baseDir, "jobs", jobID, "trace.jsonl")
}

// TraceWriter appends trace entries to <baseDir>/jobs/<jobID>/trace.jsonl.
// It buffers writes and is safe for concurrent use.
type TraceWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
	path string
}

// NewTraceWriter creates a trace writer for the given job. With appendMode
// set, new entries extend an existing file (used on resume).
func NewTraceWriter(baseDir, jobID string, appendMode bool) (*TraceWriter, error) {
	path := tracePath(baseDir, jobID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create job directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	buf := bufio.NewWriterSize(file, 64*1024)
	return &TraceWriter{
		file: file,
		buf:  buf,
		enc:  json.NewEncoder(buf),
		path: path,
	}, nil
}

// Write appends one entry. The entry is buffered until Flush or Close.
func (w *TraceWriter) Write(entry TraceEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(entry); err != nil {
		return fmt.Errorf("write trace entry: %w", err)
	}
	return nil
}

// Flush writes buffered data and syncs the file to disk.
func (w *TraceWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush trace buffer: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync trace file: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the trace file.
func (w *TraceWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush trace buffer: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close trace file: %w", closeErr)
	}
	return nil
}

// Path returns the filesystem path to the trace file.
func (w *TraceWriter) Path() string {
	return w.path
}

// TraceReader reads trace entries back from a JSONL file.
type TraceReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewTraceReader opens the trace of the given job.
func NewTraceReader(baseDir, jobID string) (*TraceReader, error) {
	file, err := os.Open(tracePath(baseDir, jobID))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{JobID: jobID}
	} else if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	// Entries carrying full solutions can be long lines.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &TraceReader{file: file, scanner: scanner}, nil
}

// Read returns the next entry, or io.EOF when the trace is exhausted.
func (r *TraceReader) Read() (*TraceEntry, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry TraceEntry
	if err := json.Unmarshal(r.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("decode trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads the remaining entries.
func (r *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := r.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
}

// Close closes the trace reader.
func (r *TraceReader) Close() error {
	return r.file.Close()
}

// DeleteTrace removes the trace file for the given job. A missing file is
// not an error.
func DeleteTrace(baseDir, jobID string) error {
	if err := os.Remove(tracePath(baseDir, jobID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete trace file: %w", err)
	}
	return nil
}
