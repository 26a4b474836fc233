package database

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/codewithmutahir/timeclock/internal/facematch"
)

// IdentifyIndex is an in-memory HNSW graph over enrolled descriptors, used
// by kiosk identification to find the nearest employee without a database
// round trip. Rebuilt from the face store on startup and kept in sync on
// enrollment writes.
type IdentifyIndex struct {
	graph *hnsw.Graph[string]
	byID  map[string]*StoredDescriptor
	mu    sync.RWMutex
}

// NewIdentifyIndex creates an empty identify index.
func NewIdentifyIndex() *IdentifyIndex {
	return &IdentifyIndex{
		byID: make(map[string]*StoredDescriptor),
	}
}

func newDescriptorGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // standard HNSW formula
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents with the given descriptors.
func (h *IdentifyIndex) Build(descriptors []StoredDescriptor) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.byID = make(map[string]*StoredDescriptor, len(descriptors))
	if len(descriptors) == 0 {
		h.graph = nil
		return
	}

	g := newDescriptorGraph()
	for i := range descriptors {
		d := &descriptors[i]
		if len(d.Descriptor) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(d.EmployeeID, d.Descriptor))
		h.byID[d.EmployeeID] = d
	}
	h.graph = g
}

// Add inserts or replaces a single employee's descriptor.
func (h *IdentifyIndex) Add(d *StoredDescriptor) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(d.Descriptor) == 0 {
		return
	}
	if h.graph == nil {
		h.graph = newDescriptorGraph()
	}
	h.graph.Add(hnsw.MakeNode(d.EmployeeID, d.Descriptor))
	h.byID[d.EmployeeID] = d
}

// Delete removes an employee from lookup. The HNSW graph has no true
// deletion; dropping the map entry removes the employee from results since
// Nearest filters through the lookup.
func (h *IdentifyIndex) Delete(employeeID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.byID, employeeID)
}

// Nearest returns the enrolled descriptor closest to the query and the
// Euclidean distance to it. ok is false when the index is empty.
func (h *IdentifyIndex) Nearest(query []float32) (*StoredDescriptor, float64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, 0, false
	}

	// Over-fetch a few candidates so deleted entries can be skipped.
	for _, n := range h.graph.Search(query, 4) {
		d, ok := h.byID[n.Key]
		if !ok {
			continue
		}
		return d, facematch.Distance(query, n.Value), true
	}
	return nil, 0, false
}

// Count returns the number of employees in lookup.
func (h *IdentifyIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}
