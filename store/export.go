package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.mongodb.org/mongo-driver/bson"
)

// JSONLWriter writes stored documents as newline-delimited JSON, one
// document per line. Used for catalog backups.
type JSONLWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
}

// NewJSONLWriter initialises the backup writer.
func NewJSONLWriter(filename string) (*JSONLWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONLWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends documents in JSONL format. The storage-internal _id
// field is dropped.
func (w *JSONLWriter) Write(docs []bson.M) error {
	for _, doc := range docs {
		record := make(map[string]interface{}, len(doc))
		for key, value := range doc {
			if key == "_id" {
				continue
			}
			record[key] = value
		}
		if err := w.encoder.Encode(record); err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("flush backup writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (w *JSONLWriter) Close() error {
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("flush backup writer: %w", err)
	}
	return w.file.Close()
}

// Export streams every stored document to a JSONL backup file and
// returns the number of documents written.
func Export(ctx context.Context, store Store, filename string) (int, error) {
	docs, err := store.Find(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("export: load documents: %w", err)
	}

	writer, err := NewJSONLWriter(filename)
	if err != nil {
		return 0, err
	}
	if err := writer.Write(docs); err != nil {
		writer.Close()
		return 0, err
	}
	if err := writer.Close(); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
