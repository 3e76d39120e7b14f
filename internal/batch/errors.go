package batch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks errors the user fixes by changing config or flags.
	ErrConfiguration = errors.New("configuration error")
	// ErrResources marks a memory budget that cannot hold a single worker.
	ErrResources = errors.New("resource error")
	// ErrChunk marks a failure confined to one chunk.
	ErrChunk = errors.New("chunk error")
	// ErrWriter marks a failure persisting results; it always aborts the run.
	ErrWriter = errors.New("writer error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrConfiguration
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Hint returns a one-line remedy for a classified error, or "".
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrResources):
		return "raise analysis.memory_gb or lower analysis.cpus"
	case errors.Is(err, ErrChunk):
		return "rerun to retry the abandoned span"
	case errors.Is(err, ErrWriter):
		return "check free space and permissions on the output directory"
	case errors.Is(err, ErrConfiguration):
		return "check the config file and command flags"
	default:
		return ""
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "batch failure"
	}
	return strings.Join(parts, ": ")
}
