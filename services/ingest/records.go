package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/meghashyamc/churnsearch/domain"
	"gopkg.in/yaml.v3"
)

const maxRecordFileSize = 10 * 1024 * 1024 // 10MB limit

// LoadRecords reads churn records from a YAML, JSON array or NDJSON file.
// Records without an id get a random one.
func LoadRecords(path string) ([]domain.Record, error) {
	content, err := readRecordFile(path)
	if err != nil {
		return nil, err
	}

	var records []domain.Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &records); err != nil {
			return nil, fmt.Errorf("could not parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(content, &records); err != nil {
			return nil, fmt.Errorf("could not parse %s: %w", path, err)
		}
	case ".ndjson", ".jsonl":
		records, err = decodeNDJSON(content)
		if err != nil {
			return nil, fmt.Errorf("could not parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported record file %s", path)
	}

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.New().String()
		}
	}

	return records, nil
}

func decodeNDJSON(content []byte) ([]domain.Record, error) {
	var records []domain.Record
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), maxRecordFileSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var record domain.Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}

	return records, scanner.Err()
}

func readRecordFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() > maxRecordFileSize {
		return nil, fmt.Errorf("record file %s is larger than %d bytes", path, maxRecordFileSize)
	}

	return io.ReadAll(file)
}
