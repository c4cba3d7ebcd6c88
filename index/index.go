// Package index provides interfaces and types for vector search indexes.
package index

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidK is returned when k is negative.
	ErrInvalidK = errors.New("k must not be negative")

	// ErrUnsupportedIndex is returned when a stored index is not of a family
	// this package can search.
	ErrUnsupportedIndex = errors.New("unsupported index type")
)

// EmptyDistance is the distance reported for result slots that hold no neighbor.
const EmptyDistance = math.MaxFloat32

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Metric represents the distance metric used for vector comparison.
// Every metric is reported as a distance: lower is nearer.
type Metric uint8

const (
	// MetricL2 is the squared Euclidean distance.
	MetricL2 Metric = iota
	// MetricInnerProduct is the negated dot product.
	MetricInnerProduct
	// MetricCosine is one minus the cosine similarity.
	MetricCosine
)

// String returns a string representation of the Metric.
func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricInnerProduct:
		return "InnerProduct"
	case MetricCosine:
		return "Cosine"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m <= MetricCosine
}

// Label identifies the stored vector behind a result slot.
// A slot with no neighbor holds None rather than a reserved id value,
// so every int64 (including 0 and negatives) is a legal id.
type Label struct {
	id    int64
	valid bool
}

// None is the label of an empty result slot.
var None = Label{}

// Some returns a label holding id.
func Some(id int64) Label {
	return Label{id: id, valid: true}
}

// Get returns the id and whether the label holds one.
func (l Label) Get() (int64, bool) {
	return l.id, l.valid
}

// IsNone reports whether the slot is empty.
func (l Label) IsNone() bool {
	return !l.valid
}

func (l Label) String() string {
	if !l.valid {
		return "None"
	}
	return fmt.Sprintf("Some(%d)", l.id)
}

// SearchResult holds the flat output of a batched k-NN search.
//
// Distances and Labels both have len = queries*K and are laid out as
// contiguous chunks of K, chunk i belonging to query i. Inside a chunk the
// slots are ordered by ascending distance; empty slots come last.
type SearchResult struct {
	K         int
	Distances []float32
	Labels    []Label
}

// NewSearchResult allocates a result for n queries where every slot is empty.
func NewSearchResult(n, k int) *SearchResult {
	r := &SearchResult{
		K:         k,
		Distances: make([]float32, n*k),
		Labels:    make([]Label, n*k),
	}
	for i := range r.Distances {
		r.Distances[i] = EmptyDistance
	}
	return r
}

// Queries returns the number of queries covered by the result.
func (r *SearchResult) Queries() int {
	if r == nil || r.K == 0 {
		return 0
	}
	return len(r.Labels) / r.K
}

// Chunk returns the slots of query i.
func (r *SearchResult) Chunk(i int) ([]float32, []Label) {
	lo, hi := i*r.K, (i+1)*r.K
	return r.Distances[lo:hi], r.Labels[lo:hi]
}

// Searcher runs batched k-NN searches over a fixed-dimension index.
type Searcher interface {
	// Dimension returns the fixed vector dimensionality.
	Dimension() int

	// Search runs one k-NN query per dim-sized chunk of queries.
	Search(queries []float32, k int) (*SearchResult, error)
}

// ConcurrentSearcher is implemented by searchers whose Search method may be
// called from many goroutines at once without external locking.
type ConcurrentSearcher interface {
	Searcher

	// ConcurrentSearch is a marker method.
	ConcurrentSearch()
}

// ValidateQueries checks that queries holds a whole number of dim-sized vectors.
func ValidateQueries(queries []float32, dim, k int) error {
	if k < 0 {
		return ErrInvalidK
	}
	if dim <= 0 || len(queries)%dim != 0 {
		return &ErrDimensionMismatch{Expected: dim, Actual: len(queries)}
	}
	return nil
}
