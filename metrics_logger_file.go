package training

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileMetricsLogger is an implementation of MetricsLogger that logs to a
// file. A file is created per session, formatted as newline-delimited JSON.
type FileMetricsLogger struct {
	directory string
}

func NewFileMetricsLogger(directory string) *FileMetricsLogger {
	return &FileMetricsLogger{directory: directory}
}

func (l *FileMetricsLogger) sessionLogPath(sessionID string) string {
	return filepath.Join(l.directory, fmt.Sprintf("%s.jsonl", sessionID))
}

func (l *FileMetricsLogger) LogRecord(ctx context.Context, record *MetricsRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	filePath := l.sessionLogPath(record.SessionID)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func (l *FileMetricsLogger) GetHistory(ctx context.Context, sessionID string) ([]*MetricsRecord, error) {
	data, err := os.ReadFile(l.sessionLogPath(sessionID))
	if err != nil {
		return nil, err
	}
	var records []*MetricsRecord
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var record MetricsRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, nil
}
