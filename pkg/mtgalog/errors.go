package mtgalog

import (
	"errors"
	"fmt"

	"github.com/mtgalog/mtgalog-go/internal/logfinder"
)

// Sentinel errors returned by the engine.
var (
	// ErrEngineClosed is returned by Start after Close has been called.
	ErrEngineClosed = errors.New("engine closed")

	// ErrAlreadyStarted is returned by Start when it was already called
	// on this Engine.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrLogDirNotFound indicates no Arena log directory could be
	// resolved from options, environment, or platform defaults.
	ErrLogDirNotFound = logfinder.ErrLogDirNotFound

	// ErrNoLogFiles indicates the log directory exists but contains no
	// Player log files.
	ErrNoLogFiles = logfinder.ErrNoLogFiles
)

// EngineOp identifies the operation an EngineError occurred in.
type EngineOp string

const (
	EngineOpFindLatest EngineOp = "find_latest"
	EngineOpTail       EngineOp = "tail"
	EngineOpRotation   EngineOp = "rotation"
	EngineOpPosition   EngineOp = "position"
	EngineOpEnrich     EngineOp = "enrich"
)

// EngineError wraps an error from one of the engine's moving parts with
// enough context to tell which part failed.
type EngineError struct {
	Op   EngineOp
	Path string
	Err  error
}

func (e *EngineError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap enables errors.Is and errors.As on the wrapped error.
func (e *EngineError) Unwrap() error {
	return e.Err
}
