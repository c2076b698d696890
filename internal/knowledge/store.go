// Package knowledge owns the uploaded reference documents.
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hession/memochat/internal/config"
	"github.com/hession/memochat/internal/errs"
	"github.com/hession/memochat/internal/logger"
	"github.com/hession/memochat/internal/storage"
)

// File one uploaded document with its fully decoded text
type File struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	Content   string    `json:"content"`
	DateAdded time.Time `json:"dateAdded"`
}

// Limits upload constraints
type Limits struct {
	AcceptedTypes []string // extensions with leading dot
	MaxFileSize   int64
	MaxFiles      int
}

// LimitsFromConfig builds limits from the knowledge config section
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		AcceptedTypes: cfg.Knowledge.AcceptedTypes,
		MaxFileSize:   cfg.MaxFileSizeBytes(),
		MaxFiles:      cfg.Knowledge.MaxFiles,
	}
}

// Store keeps the authoritative list in memory and flushes it to storage
// after every mutation
type Store struct {
	mu     sync.Mutex
	svc    *storage.Service
	limits Limits
	files  []File
	now    func() time.Time
	log    *logger.Named
}

// New loads the stored files
func New(svc *storage.Service, limits Limits) *Store {
	return &Store{
		svc:    svc,
		limits: limits,
		files:  storage.Get(svc, storage.KeyKnowledgeFiles, []File{}),
		now:    time.Now,
		log:    logger.For("knowledge"),
	}
}

// Reload replaces the in-memory copy with what storage holds
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = storage.Get(s.svc, storage.KeyKnowledgeFiles, []File{})
}

// Files returns a copy of the stored files in upload order
func (s *Store) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]File(nil), s.files...)
}

// Len returns the number of stored files
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Validate checks name and size against the limits before any read
func (s *Store) Validate(name string, size int64) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !s.accepts(ext) {
		return errs.New(errs.ValidationFailure, "knowledge.add",
			fmt.Sprintf("file type not allowed: %s (accepted: %s)", name, strings.Join(s.limits.AcceptedTypes, ", ")))
	}
	if s.limits.MaxFileSize > 0 && size > s.limits.MaxFileSize {
		return errs.New(errs.ValidationFailure, "knowledge.add",
			fmt.Sprintf("file too large: %s (%d bytes, max %d)", name, size, s.limits.MaxFileSize))
	}
	if s.limits.MaxFiles > 0 && s.Len() >= s.limits.MaxFiles {
		return errs.New(errs.ValidationFailure, "knowledge.add",
			fmt.Sprintf("knowledge base is full (%d files)", s.limits.MaxFiles))
	}
	return nil
}

func (s *Store) accepts(ext string) bool {
	for _, t := range s.limits.AcceptedTypes {
		if strings.ToLower(t) == ext {
			return true
		}
	}
	return false
}

// Add validates and decodes data, then appends the new record
func (s *Store) Add(name string, data []byte) (File, error) {
	if err := s.Validate(name, int64(len(data))); err != nil {
		return File{}, err
	}
	if !utf8.Valid(data) {
		return File{}, errs.New(errs.DecodeFailure, "knowledge.add", "error reading file")
	}

	f := File{
		ID:        uuid.New().String(),
		Name:      name,
		Type:      strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
		Size:      int64(len(data)),
		Content:   string(data),
		DateAdded: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limits.MaxFiles > 0 && len(s.files) >= s.limits.MaxFiles {
		return File{}, errs.New(errs.ValidationFailure, "knowledge.add",
			fmt.Sprintf("knowledge base is full (%d files)", s.limits.MaxFiles))
	}
	s.files = append(s.files, f)
	if !s.flush() {
		s.log.Warn("Knowledge file %s kept in memory only", name)
		return f, errs.New(errs.StorageFailure, "knowledge.add", "file not saved: "+name)
	}
	return f, nil
}

// AddFile validates the file on disk, then reads and adds it
func (s *Store) AddFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return File{}, errs.New(errs.ValidationFailure, "knowledge.add", path+" is a directory")
	}
	name := filepath.Base(path)
	if err := s.Validate(name, info.Size()); err != nil {
		return File{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errs.Wrap(errs.DecodeFailure, "knowledge.add", "error reading file", err)
	}
	return s.Add(name, data)
}

// Delete removes the file with id and reports whether it was present
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]File, 0, len(s.files))
	for _, f := range s.files {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(s.files) {
		return false
	}
	s.files = kept
	s.flush()
	return true
}

// Replace overwrites the full list
func (s *Store) Replace(files []File) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append([]File{}, files...)
	return s.flush()
}

// TypeCount number of files of one type
type TypeCount struct {
	Type  string
	Count int
}

// Stats summary of the stored files
type Stats struct {
	Files     int
	TotalSize int64
	ByType    []TypeCount
}

// Stats counts files per type, sorted by type
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[string]int{}
	var st Stats
	for _, f := range s.files {
		st.Files++
		st.TotalSize += f.Size
		counts[f.Type]++
	}
	for t, n := range counts {
		st.ByType = append(st.ByType, TypeCount{Type: t, Count: n})
	}
	sort.Slice(st.ByType, func(i, j int) bool { return st.ByType[i].Type < st.ByType[j].Type })
	return st
}

// flush must be called with mu held
func (s *Store) flush() bool {
	return s.svc.Set(storage.KeyKnowledgeFiles, s.files)
}
