package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"poolFactory/internal/model"
)

// JsonlJournal appends event records to a JSONL file.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

// AppendEvents appends a batch of event records as JSON lines.
func (j *JsonlJournal) AppendEvents(records []model.EventRecord) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(j.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal event record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write event record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}

	return nil
}

// DropAfter removes every record whose sequence number is greater than seq
// and reports how many were dropped. A commit interrupted between the journal
// append and the snapshot save leaves such records behind; dropping them puts
// the journal back in step with the last saved snapshot. A record that fails
// to parse aborts the rewrite.
func (j *JsonlJournal) DropAfter(seq uint64) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var kept [][]byte
	dropped := 0
	err := ScanLines(j.path, func(line []byte) error {
		var record model.EventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("parse journal record: %w", err)
		}
		if record.Seq > seq {
			dropped++
			return nil
		}
		kept = append(kept, append([]byte(nil), line...))
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	if dropped == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	for _, line := range kept {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	tmpPath := j.path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write journal tmp: %w", err)
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return 0, fmt.Errorf("rename journal: %w", err)
	}

	return dropped, nil
}

// ScanLines reads a JSONL file line by line, skipping blank lines. The line
// slice passed to fn is only valid for the duration of the call.
func ScanLines(path string, fn func(line []byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan journal: %w", err)
	}

	return nil
}
