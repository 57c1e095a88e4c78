// Package audit maintains the append-only, tamper-evident record of
// outbound decisions. The log is newline-delimited JSON: one entry per
// line, each chained to the previous line by hash. Records are never
// mutated or deleted; querying goes through an in-memory SQLite index
// built from the file.
package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Martian-Engineering/mb-cli/internal/safefile"
)

// tailChunk bounds how far back Append looks for the previous line.
// A single entry is far smaller (preview-truncated), so one chunk
// always contains the last complete line.
const tailChunk = 64 * 1024

// Append writes one entry to the log at path, linking it to the
// previous entry's raw line hash. The file is opened O_APPEND; there
// is no read-modify-write of existing records.
func Append(path string, entry Entry) error {
	if err := ensureNotSymlink(path); err != nil {
		return err
	}

	prev, err := lastLine(path)
	if err != nil {
		return fmt.Errorf("reading log tail: %w", err)
	}
	if prev != nil {
		entry.PrevHash = lineHash(prev)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating audit log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// Read returns all entries in write order. Unparseable lines are
// returned as an error: a log that does not parse has been tampered
// with or corrupted, and that is worth surfacing.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, tailChunk), tailChunk)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("audit log line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	return entries, nil
}

// Verify walks the hash chain and returns the number of verified
// entries. Any break — a reordered, edited, or deleted line — fails
// with the line number where the chain no longer links.
func Verify(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, tailChunk), tailChunk)
	var prevRaw []byte
	count := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return count, fmt.Errorf("line %d: unparseable entry: %w", lineNo, err)
		}
		if prevRaw == nil {
			if e.PrevHash != "" {
				return count, fmt.Errorf("line %d: first entry carries a prev_hash", lineNo)
			}
		} else if e.PrevHash != lineHash(prevRaw) {
			return count, fmt.Errorf("line %d: hash chain broken", lineNo)
		}
		prevRaw = append(prevRaw[:0], line...)
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading audit log: %w", err)
	}
	return count, nil
}

// lastLine returns the final newline-terminated line of the file, or
// nil if the file is missing or empty. Only the last tailChunk bytes
// are examined.
func lastLine(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	offset := size - tailChunk
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	buf = bytes.TrimRight(buf, "\n")
	if len(buf) == 0 {
		return nil, nil
	}
	if idx := bytes.LastIndexByte(buf, '\n'); idx >= 0 {
		buf = buf[idx+1:]
	}
	line := bytes.TrimSpace(buf)
	if len(line) == 0 {
		return nil, nil
	}
	return line, nil
}

func lineHash(line []byte) string {
	sum := sha256.Sum256(line)
	return hex.EncodeToString(sum[:])
}

func ensureNotSymlink(path string) error {
	err := safefile.RejectSymlink(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
