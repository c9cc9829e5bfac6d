package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the wire-stable classification of a pipeline failure. It is
// what callers see in the run's failures list.
type ErrorKind string

const (
	KindInvalidSource ErrorKind = "invalid_source"
	KindFetch         ErrorKind = "fetch_error"
	KindBlocked       ErrorKind = "blocked"
	KindParse         ErrorKind = "parse_error"
	KindModelContract ErrorKind = "model_contract"
	KindRunTimeout    ErrorKind = "run_timeout"
)

// KindedError is implemented by the typed errors below so failures can be
// classified through eris/fmt wrapping via errors.As.
type KindedError interface {
	error
	Kind() ErrorKind
}

// InvalidSourceError marks a URL that could not be classified. The source
// is excluded from the run; the run continues.
type InvalidSourceError struct {
	URL    string
	Reason string
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid source %q: %s", e.URL, e.Reason)
}
func (e *InvalidSourceError) Kind() ErrorKind { return KindInvalidSource }

// FetchError marks a failed HTTP fetch (non-2xx, network failure, timeout).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}
func (e *FetchError) Unwrap() error   { return e.Err }
func (e *FetchError) Kind() ErrorKind { return KindFetch }

// BlockedError marks a fetch rejected by anti-bot protection or denied by
// robots.txt. Blocked sources are never retried with evasion.
type BlockedError struct {
	URL       string
	BlockType string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked %s (%s)", e.URL, e.BlockType)
}
func (e *BlockedError) Kind() ErrorKind { return KindBlocked }

// ParseError marks unparsable page content. The pipeline substitutes empty
// content with a diagnostic note and continues.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string   { return fmt.Sprintf("parse %s: %v", e.URL, e.Err) }
func (e *ParseError) Unwrap() error   { return e.Err }
func (e *ParseError) Kind() ErrorKind { return KindParse }

// ModelContractError marks a model response that failed schema validation.
// The pass's output is treated as empty; never fatal to the run.
type ModelContractError struct {
	Pass string // "claim_extraction" or "verification"
	Err  error
}

func (e *ModelContractError) Error() string {
	return fmt.Sprintf("model contract violation in %s: %v", e.Pass, e.Err)
}
func (e *ModelContractError) Unwrap() error   { return e.Err }
func (e *ModelContractError) Kind() ErrorKind { return KindModelContract }

// RunTimeoutError marks a run that exceeded its wall-clock budget. The run
// is failed and no partial merge is committed.
type RunTimeoutError struct {
	Budget string
}

func (e *RunTimeoutError) Error() string   { return "run exceeded wall-clock budget " + e.Budget }
func (e *RunTimeoutError) Kind() ErrorKind { return KindRunTimeout }

// KindOf classifies err by the first KindedError in its chain. Returns
// KindFetch for unclassified errors since per-source failures are, absent
// better information, fetch-level.
func KindOf(err error) ErrorKind {
	var ke KindedError
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return KindFetch
}
