// Package types contains shared data types used across the project.
package types

import (
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"
)

// SourceFile represents a source file to be parsed.
type SourceFile struct {
	Path     string // Path to the file
	Content  []byte // File content
	Language string // Registered language name
	Hash     string // blake3 hash of Content
}

// ComputeHash calculates the blake3 hash of the file content.
func (f *SourceFile) ComputeHash() string {
	return HashContent(f.Content)
}

// HashContent returns the hex-encoded blake3 hash of data.
func HashContent(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ParseReport summarizes one parse of a file.
type ParseReport struct {
	Path        string
	Language    string
	Hash        string
	Bytes       int
	Duration    time.Duration
	Incremental bool // an edited previous tree was reused
	Nodes       int  // visible nodes in the tree
	Errors      int  // ERROR nodes
	Missing     int  // MISSING nodes
	ReusedNodes int
	ReusedBytes uint32
	Tokens      int // tokens lexed from text
}

// HasErrors reports whether the parsed tree contained syntax errors.
func (r *ParseReport) HasErrors() bool { return r.Errors > 0 || r.Missing > 0 }

// ParseRecord is a stored ParseReport.
type ParseRecord struct {
	ID        string
	CreatedAt time.Time
	ParseReport
}

// StoreStats contains statistics about the parse history store.
type StoreStats struct {
	Files       int
	Records     int
	ErrorParses int
	LastParsed  time.Time
	DBSizeBytes int64
}
