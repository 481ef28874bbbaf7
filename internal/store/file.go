package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FormatVersion is the on-disk format version. The first line of the store
// file holds this integer; the rest of the file is a YAML document.
const FormatVersion = 1

type fileBucket struct {
	Day     string           `yaml:"day"`
	Hour    int              `yaml:"hour"`
	Seconds map[string]int64 `yaml:"seconds"`
}

type fileDoc struct {
	Buckets []fileBucket `yaml:"buckets"`
}

// FileStore owns an Aggregate and persists it to a single file. Saves are
// atomic: the document is written to a temporary file in the same directory
// and renamed over the canonical path, so a crash mid-write never corrupts
// the previously committed file.
type FileStore struct {
	path   string
	agg    *Aggregate
	logger *log.Logger
}

func NewFileStore(path string, logger *log.Logger) *FileStore {
	return &FileStore{path: path, agg: NewAggregate(), logger: logger}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Aggregate() *Aggregate {
	return s.agg
}

func (s *FileStore) AddSlice(category string, from, to time.Time) {
	s.agg.AddSlice(category, from, to)
}

// Load reads the store file. A missing file starts an empty aggregate with a
// warning. A file with a missing, non-integer, or mismatched version, or an
// undecodable body, also starts empty but is logged as an error and left
// untouched on disk until the next successful save. Only unexpected I/O
// failures are returned.
func (s *FileStore) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Printf("Store file %s not found, starting with an empty aggregate.", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file %s: %w", s.path, err)
	}

	agg, err := decode(data)
	if err != nil {
		s.logger.Printf("ERROR: store file %s is unusable (%v); starting empty, file left untouched.", s.path, err)
		s.agg = NewAggregate()
		return nil
	}
	s.agg = agg
	return nil
}

// Save writes the aggregate atomically.
func (s *FileStore) Save() error {
	data, err := encode(s.agg)
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".timespent-store-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary store file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temporary store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temporary store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace store file %s: %w", s.path, err)
	}
	return nil
}

func decode(data []byte) (*Aggregate, error) {
	newline := bytes.IndexByte(data, '\n')
	if newline < 0 {
		return nil, errors.New("missing version header")
	}
	header := strings.TrimSpace(string(data[:newline]))
	version, err := strconv.Atoi(header)
	if err != nil {
		return nil, fmt.Errorf("version %q is not an integer", header)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("version %d does not match expected %d", version, FormatVersion)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data[newline+1:], &doc); err != nil {
		return nil, fmt.Errorf("cannot decode body: %w", err)
	}

	agg := NewAggregate()
	for _, fb := range doc.Buckets {
		for category, seconds := range fb.Seconds {
			agg.add(Bucket{Day: fb.Day, Hour: fb.Hour}, category, time.Duration(seconds)*time.Second)
		}
	}
	return agg, nil
}

func encode(agg *Aggregate) ([]byte, error) {
	doc := fileDoc{}
	for _, bt := range agg.Buckets() {
		doc.Buckets = append(doc.Buckets, fileBucket{
			Day:     bt.Bucket.Day,
			Hour:    bt.Bucket.Hour,
			Seconds: bt.Seconds,
		})
	}
	body, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d\n", FormatVersion)
	buf.Write(body)
	return buf.Bytes(), nil
}
