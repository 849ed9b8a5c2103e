// Package feed is the bank transaction collaborator: CSV parsers for bank
// exports, the import directory, and an in-memory feed the ledger can append
// deposits and requests to.
package feed

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/settleloop/settleloop/internal/model"
)

// Parser converts a bank CSV file into BankTransactions.
type Parser interface {
	Parse(r io.Reader) ([]model.BankTransaction, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with the native parser and a Chase
// parser posting into accountID.
func DefaultRegistry(accountID string) *Registry {
	r := NewRegistry()
	r.Register(&NativeParser{})
	r.Register(&ChaseParser{AccountID: accountID})
	return r
}

// ParseFile opens path and parses it with the parser registered for format.
func (r *Registry) ParseFile(format, path string) ([]model.BankTransaction, error) {
	p := r.Get(format)
	if p == nil {
		return nil, fmt.Errorf("unknown feed format %q", format)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	txns, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return txns, nil
}

// processedDir is the subdirectory of the import dir holding consumed files.
const processedDir = "processed"

// Scan returns the CSV files directly inside importDir. A missing directory
// yields no files.
func Scan(importDir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(importDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(importDir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from importDir to importDir/processed.
func MarkProcessed(importDir, fileName string) error {
	src := filepath.Join(importDir, fileName)
	dstDir := filepath.Join(importDir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// FormatFor guesses the parser format from a file name: files whose name
// starts with "chase" use the Chase parser, everything else the native one.
func FormatFor(fileName string) string {
	if strings.HasPrefix(strings.ToLower(fileName), "chase") {
		return chaseFormat
	}
	return nativeFormat
}
