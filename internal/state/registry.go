// Package state tracks which uploaded files make up the knowledge base.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// File is one ingested upload.
type File struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Registry records the files of the latest successful ingest and the most
// recent HTML upload, whose raw markup downstream consumers read for
// selector generation.
type Registry struct {
	mu         sync.RWMutex
	files      map[string]File
	latestHTML string
	now        func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{files: make(map[string]File), now: time.Now}
}

// Record adds or replaces a file. HTML files become the latest HTML.
func (r *Registry) Record(name, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.files[name] = File{Name: name, Path: path, IngestedAt: r.now()}
	if isHTML(name) {
		r.latestHTML = name
	}
}

// Reset forgets every file. A full rebuild calls this before recording
// the new set.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = make(map[string]File)
	r.latestHTML = ""
}

// Files returns the recorded files sorted by name.
func (r *Registry) Files() []File {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]File, 0, len(r.files))
	for _, f := range r.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LatestHTML returns the most recently recorded HTML file.
func (r *Registry) LatestHTML() (File, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.latestHTML == "" {
		return File{}, false
	}
	f, ok := r.files[r.latestHTML]
	return f, ok
}

// RawHTML reads the markup of the latest HTML upload from disk.
func (r *Registry) RawHTML() (string, error) {
	f, ok := r.LatestHTML()
	if !ok {
		return "", fmt.Errorf("no HTML file has been ingested")
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}
	return string(data), nil
}

func isHTML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}
