package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/masahif/sitescope/internal/crawler"
)

// SaveJSON writes the run's records to path as one JSON object keyed by URL,
// in visit order, indented by two spaces and with HTML characters and
// non-ASCII text left unescaped. The file is replaced atomically.
func SaveJSON(path string, result *crawler.Result) error {
	var buf bytes.Buffer
	buf.WriteString("{")

	for i, url := range pageOrder(result) {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := encode(url, "")
		if err != nil {
			return fmt.Errorf("failed to encode key %s: %w", url, err)
		}
		value, err := encode(result.Pages[url], "  ")
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", url, err)
		}
		buf.WriteString("\n  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
	}
	if len(result.Pages) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".sitescope-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// RecordSet is a loaded run: raw records keyed by URL plus the URLs in
// stored order. Records are kept raw so a reader needs no knowledge of the
// record shape.
type RecordSet struct {
	URLs    []string
	Records map[string]json.RawMessage
}

// NewRecordSet creates an empty record set
func NewRecordSet() *RecordSet {
	return &RecordSet{URLs: []string{}, Records: make(map[string]json.RawMessage)}
}

// Add appends a record; a repeated URL replaces the earlier record in place
func (s *RecordSet) Add(url string, record json.RawMessage) {
	if _, ok := s.Records[url]; !ok {
		s.URLs = append(s.URLs, url)
	}
	s.Records[url] = record
}

// Len is the number of records
func (s *RecordSet) Len() int { return len(s.URLs) }

// LoadJSON reads a document written by SaveJSON, keeping key order
func LoadJSON(path string) (*RecordSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	set, err := decodeRecordSet(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return set, nil
}

func decodeRecordSet(data []byte) (*RecordSet, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	set := NewRecordSet()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		url, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var record json.RawMessage
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("record %s: %w", url, err)
		}
		set.Add(url, record)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return set, nil
}

func marshalRecord(rec crawler.PageRecord) ([]byte, error) {
	return encode(rec, "")
}

func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent(indent, "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func sortedURLs(pages map[string]crawler.PageRecord) []string {
	urls := make([]string, 0, len(pages))
	for url := range pages {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}
