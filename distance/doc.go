// Package distance provides vector distance calculations.
//
// # Supported Metrics
//
//   - index.MetricL2: squared Euclidean distance
//   - index.MetricInnerProduct: negated dot product
//   - index.MetricCosine: 1 - cosine similarity over normalized vectors
//
// The kernels are written with four independent accumulators so the
// compiler can keep them in registers; they assume equal-length inputs.
package distance
