package vecgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/vecgate/index"
	"github.com/hupe1980/vecgate/internal/resource"
	"github.com/hupe1980/vecgate/internal/workerpool"
)

// DimensionMismatchMessage is the client-facing message for batches whose
// vectors do not match the index dimensionality.
const DimensionMismatchMessage = "Provided vectors has different dimensions than the index"

var (
	// ErrDimensionMismatch is the reason of a ValidationError for vectors
	// that do not match the index dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidK is the reason of a ValidationError for a k outside [0, max k].
	ErrInvalidK = errors.New("invalid k")

	// ErrBatchTooLarge is the reason of a ValidationError for a batch with
	// more vectors than the configured limit.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrExecutorClosed is returned by Execute after Close.
	ErrExecutorClosed = errors.New("executor closed")

	// ErrOverloaded is returned when admission control rejects a request.
	ErrOverloaded = errors.New("gateway overloaded")
)

// LoadError reports that an index could not be opened or decoded.
// A process must not serve traffic after a LoadError.
type LoadError struct {
	Location string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load index %q: %v", e.Location, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError reports a malformed batch. Message is safe to return to
// clients; Reason is one of the Err* sentinels above.
type ValidationError struct {
	Reason  error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Reason }

// SearchError reports a failure of the underlying search engine.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed: %v", e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

func dimensionMismatch() *ValidationError {
	return &ValidationError{Reason: ErrDimensionMismatch, Message: DimensionMismatchMessage}
}

// translateError maps errors of the lower layers onto the gateway taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}

	// Admission.
	if resource.IsOverload(err) {
		return fmt.Errorf("%w: %w", ErrOverloaded, err)
	}
	if errors.Is(err, workerpool.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrExecutorClosed, err)
	}

	// The caller went away; this is not an engine failure.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// Arguments the engine rejected despite validation.
	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ValidationError{Reason: fmt.Errorf("%w: %w", ErrDimensionMismatch, err), Message: DimensionMismatchMessage}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return &ValidationError{Reason: fmt.Errorf("%w: %w", ErrInvalidK, err), Message: err.Error()}
	}

	var se *SearchError
	if errors.As(err, &se) {
		return err
	}
	return &SearchError{Err: err}
}
