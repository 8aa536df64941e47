package media

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying every failure the service reports. Callers
// branch with errors.Is; the wrapped detail keeps the human-readable message
// from the failing operation or external tool.
var (
	// ErrExtraction marks failures resolving or querying a URL through the
	// external extractor (bad URL, network error, unsupported site).
	ErrExtraction = errors.New("extraction failed")
	// ErrDownload marks failures during audio acquisition.
	ErrDownload = errors.New("download failed")
	// ErrCorruptCatalog marks an unreadable or unparsable catalog file. Not
	// locally recoverable; surfaced to the caller of the triggering operation.
	ErrCorruptCatalog = errors.New("catalog corrupt")
	// ErrNotFound marks operations referencing an unknown content identifier.
	ErrNotFound = errors.New("not found")
)

// WrapError tags err with the given sentinel and operation context.
func WrapError(kind error, operation string, err error) error {
	operation = strings.TrimSpace(operation)
	if kind == nil {
		kind = ErrDownload
	}
	switch {
	case err != nil && operation != "":
		return fmt.Errorf("%w: %s: %w", kind, operation, err)
	case err != nil:
		return fmt.Errorf("%w: %w", kind, err)
	case operation != "":
		return fmt.Errorf("%w: %s", kind, operation)
	default:
		return kind
	}
}
