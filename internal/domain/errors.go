package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData means no hotspot source returned a usable feature. It fails
	// the hotspot stage of a run; the other stages are unaffected.
	ErrNoData = errors.New("no hotspot data available")

	// ErrNoBoundary means no boundary features were loaded, so observations
	// cannot be classified.
	ErrNoBoundary = errors.New("no boundary data loaded")
)

// NetworkError is a transient transport failure or an unsuccessful HTTP status.
// The fetch client retries these while attempts remain.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when the request never produced a response
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// FetchExhaustedError is returned once every allowed attempt has failed.
type FetchExhaustedError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: gave up after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchExhaustedError) Unwrap() error { return e.Err }

// SourceError attributes a failure to one hotspot feed.
type SourceError struct {
	Source Source
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// HorizonError attributes a failure to one risk forecast horizon.
type HorizonError struct {
	Horizon string
	Err     error
}

func (e *HorizonError) Error() string {
	return fmt.Sprintf("risk horizon %s: %v", e.Horizon, e.Err)
}

func (e *HorizonError) Unwrap() error { return e.Err }

// GeometryError marks a cluster whose polygon could not be built. The cluster
// is skipped and the remaining clusters are kept.
type GeometryError struct {
	Cluster int
	Reason  string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("cluster %d: geometry failed: %s", e.Cluster, e.Reason)
}
