package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/meghashyamc/churnsearch/domain"
)

// DiscoverRecordFiles returns the record files under root, skipping hidden
// entries. A path to a single file is returned as is.
func DiscoverRecordFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				return nil
			}
			return err
		}

		// Skip directories that start with '.' but not the root directory
		if info.IsDir() && strings.HasPrefix(info.Name(), ".") && path != root {
			return filepath.SkipDir
		}

		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}

		if isRecordFile(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)

	return files, err
}

// LoadRecordsFrom loads every record file DiscoverRecordFiles finds under root.
func LoadRecordsFrom(root string) ([]domain.Record, error) {
	files, err := DiscoverRecordFiles(root)
	if err != nil {
		return nil, err
	}

	var records []domain.Record
	for _, file := range files {
		loaded, err := LoadRecords(file)
		if err != nil {
			return nil, err
		}
		records = append(records, loaded...)
	}
	return records, nil
}

func isRecordFile(path string) bool {
	recordExtensions := map[string]bool{
		".yaml": true, ".yml": true, ".json": true, ".ndjson": true, ".jsonl": true,
	}

	ext := strings.ToLower(filepath.Ext(path))
	return recordExtensions[ext]
}
