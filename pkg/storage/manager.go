package storage

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	errs "actionpacer/pkg/errors"
	"actionpacer/pkg/record"
)

// Format names an output encoding
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

var csvHeader = []string{"run_id", "target_id", "timestamp", "outcome", "attempts", "incomplete", "missing", "attributes"}

// Sink appends records to a flat file. Each Append is durable before it
// returns, and a failed Append leaves the file as it was.
type Sink struct {
	path   string
	format Format
	file   *os.File
	offset int64
	count  int
	mu     sync.Mutex
}

// Open opens path for appending, creating it if needed. A trailing
// partial line left by an earlier crash is cut off first.
func Open(path string, format Format) (*Sink, error) {
	format = Format(strings.ToLower(string(format)))
	if format != FormatJSONL && format != FormatCSV {
		return nil, errs.InvalidConfiguration(fmt.Sprintf("unsupported output format %q", format), nil)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errs.Output("failed to create output directory", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errs.Output("failed to open output file", err)
	}

	s := &Sink{path: path, format: format, file: file}
	if err := s.recover(); err != nil {
		file.Close()
		return nil, err
	}

	if s.offset == 0 && format == FormatCSV {
		if err := s.writeRaw(encodeCSV(csvHeader)); err != nil {
			file.Close()
			return nil, err
		}
	}

	return s, nil
}

// recover counts complete records and truncates anything after the last newline
func (s *Sink) recover() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return errs.Output("failed to read output file", err)
	}

	var (
		lines    int
		complete int64
		pos      int64
	)
	reader := bufio.NewReader(s.file)
	for {
		line, err := reader.ReadBytes('\n')
		pos += int64(len(line))
		if len(line) > 0 && line[len(line)-1] == '\n' {
			lines++
			complete = pos
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errs.Output("failed to read output file", err)
		}
	}

	if complete < pos {
		if err := s.file.Truncate(complete); err != nil {
			return errs.Output("failed to drop partial trailing record", err)
		}
	}
	if _, err := s.file.Seek(complete, io.SeekStart); err != nil {
		return errs.Output("failed to seek output file", err)
	}

	s.offset = complete
	s.count = lines
	if s.format == FormatCSV && lines > 0 {
		s.count-- // header
	}
	return nil
}

// Append writes one record and syncs it to disk
func (s *Sink) Append(rec *record.Record) error {
	var (
		data []byte
		err  error
	)
	switch s.format {
	case FormatCSV:
		data, err = csvRow(rec)
	default:
		data, err = json.Marshal(rec)
		data = append(data, '\n')
	}
	if err != nil {
		return errs.Output("failed to encode record", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeRaw(data); err != nil {
		return err
	}
	s.count++
	return nil
}

func (s *Sink) writeRaw(data []byte) error {
	if s.file == nil {
		return errs.Output("sink is closed", nil)
	}

	n, err := s.file.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = s.file.Sync()
	}
	if err != nil {
		// Roll back so the file never ends in a torn record
		_ = s.file.Truncate(s.offset)
		_, _ = s.file.Seek(s.offset, io.SeekStart)
		return errs.Output("failed to write record", err)
	}

	s.offset += int64(n)
	return nil
}

// Count returns the number of complete records in the file
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Path returns the output file path
func (s *Sink) Path() string {
	return s.path
}

// Close closes the underlying file
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func csvRow(rec *record.Record) ([]byte, error) {
	attrs := ""
	if len(rec.Attributes) > 0 {
		b, err := json.Marshal(rec.Attributes)
		if err != nil {
			return nil, err
		}
		attrs = string(b)
	}

	return encodeCSV([]string{
		rec.RunID,
		oneLine(rec.TargetID),
		rec.Timestamp.Format(time.RFC3339Nano),
		string(rec.Outcome),
		strconv.Itoa(rec.Attempts),
		strconv.FormatBool(rec.Incomplete),
		oneLine(strings.Join(rec.Missing, ";")),
		attrs,
	}), nil
}

// oneLine keeps every CSV record on a single physical line so crash
// recovery can cut at the last newline.
func oneLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

func encodeCSV(fields []string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(fields)
	w.Flush()
	return buf.Bytes()
}
