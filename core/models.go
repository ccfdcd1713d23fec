package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for persisted vector records.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// RecordID derives a VectorRecord ID from its name and content hash, so
// re-ingesting the same content replaces the stored record.
func RecordID(name, contentHash string) ID {
	return IDFromContent(name + "\x00" + contentHash)
}

// Fingerprint returns the hex encoded SHA-256 digest of data.
// Chunk content hashes and PDF byte fingerprints share this format.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SourceKind identifies the shape of a SourceDocument.
type SourceKind string

const (
	// SourceKindJSON is a JSON-LD-like property graph.
	SourceKindJSON SourceKind = "json"
	// SourceKindPDF is a raw PDF byte stream.
	SourceKindPDF SourceKind = "pdf"
)

// SourceDocument is one input read during an ingestion pass.
type SourceDocument struct {
	Origin string // file path or URL the bytes were read from
	Kind   SourceKind
	Data   []byte
}

// NormalizedFact is a flat key/value pair derived from a property graph.
// Keys encode nesting as dot separated paths.
type NormalizedFact struct {
	Key   string
	Value string
}

// Paragraph is an ordered group of facts or PDF lines.
type Paragraph struct {
	Heading string
	Lines   []string
}

// Chunk is a token bounded span of paragraph text prepared for embedding.
type Chunk struct {
	Index          int
	Content        string
	ContentHash    string
	SectionHeading string
	ParentID       string
}

// ParentRecord is the coarse whole-document embedding for one source.
type ParentRecord struct {
	ParentID  string
	Origin    string
	Text      string // text that was embedded, possibly truncated
	Embedding []float32
}

// Label keys attached to every VectorRecord.
const (
	LabelSource       = "source"
	LabelParentID     = "parentId"
	LabelSHA256       = "sha256"
	LabelText         = "text"
	LabelKind         = "kind"
	LabelChunkIndex   = "chunkIndex"
	LabelSectionPath  = "sectionPath"
	LabelMachineID    = "machine.id"
	LabelMachineName  = "machine.name"
	LabelMachineVer   = "machine.version"
	LabelMachineFrom  = "machine.validFrom"
	LabelMachineUntil = "machine.validTo"
)

// Record kinds stored under LabelKind.
const (
	RecordKindParent = "parent"
	RecordKindChunk  = "chunk"
)

// VectorRecord is the unit persisted to the vector store.
// Records are immutable once created.
type VectorRecord struct {
	Id          ID
	Name        string
	ContentType string
	Embedding   []float32
	Labels      map[string]string
	InsertedAt  time.Time
}

// Text returns the text label of the record.
func (r *VectorRecord) Text() string {
	return r.Labels[LabelText]
}

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatTurn is a single message in a conversation.
type ChatTurn struct {
	Role    Role
	Content string
}

// MachineMeta holds the machine level fields derived from a property graph.
// Empty fields were not present in the source.
type MachineMeta struct {
	ID         string
	Name       string
	Version    string
	ValidFrom  string
	ValidUntil string
}

// Labels returns the non-empty fields keyed by their label names.
func (m MachineMeta) Labels() map[string]string {
	out := make(map[string]string, 5)
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put(LabelMachineID, m.ID)
	put(LabelMachineName, m.Name)
	put(LabelMachineVer, m.Version)
	put(LabelMachineFrom, m.ValidFrom)
	put(LabelMachineUntil, m.ValidUntil)
	return out
}

// Reading is one time-series sample.
type Reading struct {
	Timestamp time.Time
	Value     float64
}

// Alert is one record returned by the alert service.
type Alert struct {
	ID         string
	Resource   string
	Event      string
	Severity   string
	Status     string
	Text       string
	CreateTime time.Time
}
