package vecgate

// QueryBatch is one search request.
type QueryBatch struct {
	// Vectors holds one query per element, each of the index dimensionality.
	Vectors [][]float32 `json:"vectors"`

	// K is the number of neighbors requested per query.
	K int `json:"k"`
}

// Neighbor is one search hit.
type Neighbor struct {
	ID    int64   `json:"id"`
	Score float32 `json:"score"`
}

// SingleResult holds the neighbors of one query, nearest first, together with
// the query vector they were computed for.
type SingleResult struct {
	Neighbors []Neighbor `json:"neighbors"`
	Vector    []float32  `json:"vector"`
}

// Response holds one SingleResult per query, in input order.
type Response struct {
	Results []SingleResult `json:"results"`
}

// ErrorResponse is the body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IndexInfo describes the loaded index.
type IndexInfo struct {
	Location   string `json:"location"`
	Type       string `json:"type"`
	Dimension  int    `json:"dimension"`
	Count      int    `json:"count"`
	Metric     string `json:"metric,omitempty"`
	Concurrent bool   `json:"concurrent"`
}
