package search

import (
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/storage"
)

// RetrievalMonitor receives callbacks during retrieval.
// Useful for debugging, tracing, or showing progress.
type RetrievalMonitor interface {
	Start(query string)
	AfterEmbedding(dimension int)
	AfterSearch(hits []storage.Hit)
	Finish(sources []core.Source)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)               {}
func (n *noopMonitor) AfterEmbedding(_ int)         {}
func (n *noopMonitor) AfterSearch(_ []storage.Hit)  {}
func (n *noopMonitor) Finish(_ []core.Source)       {}
