package engine

import (
	"errors"
	"fmt"
)

// Code is an engine status code. Values match hs_error_t.
type Code int

const (
	CodeSuccess           Code = 0
	CodeInvalid           Code = -1
	CodeNoMem             Code = -2
	CodeScanTerminated    Code = -3
	CodeCompilerError     Code = -4
	CodeDBVersionError    Code = -5
	CodeDBPlatformError   Code = -6
	CodeDBModeError       Code = -7
	CodeBadAlign          Code = -8
	CodeBadAlloc          Code = -9
	CodeScratchInUse      Code = -10
	CodeArchError         Code = -11
	CodeInsufficientSpace Code = -12
	CodeUnknownError      Code = -13
)

var codeMessages = map[Code]string{
	CodeSuccess:           "success",
	CodeInvalid:           "a parameter passed to this function was invalid",
	CodeNoMem:             "a memory allocation failed",
	CodeScanTerminated:    "the engine was terminated by callback",
	CodeCompilerError:     "the pattern compiler failed",
	CodeDBVersionError:    "the given database was built for a different version of the engine",
	CodeDBPlatformError:   "the given database was built for a different platform",
	CodeDBModeError:       "the given database was built for a different mode of operation",
	CodeBadAlign:          "a parameter passed to this function was not correctly aligned",
	CodeBadAlloc:          "the memory allocator did not correctly return aligned memory",
	CodeScratchInUse:      "the scratch region was already in use",
	CodeArchError:         "unsupported CPU architecture",
	CodeInsufficientSpace: "provided buffer was too small",
	CodeUnknownError:      "unexpected internal error",
}

var codeNames = map[Code]string{
	CodeSuccess:           "HS_SUCCESS",
	CodeInvalid:           "HS_INVALID",
	CodeNoMem:             "HS_NOMEM",
	CodeScanTerminated:    "HS_SCAN_TERMINATED",
	CodeCompilerError:     "HS_COMPILER_ERROR",
	CodeDBVersionError:    "HS_DB_VERSION_ERROR",
	CodeDBPlatformError:   "HS_DB_PLATFORM_ERROR",
	CodeDBModeError:       "HS_DB_MODE_ERROR",
	CodeBadAlign:          "HS_BAD_ALIGN",
	CodeBadAlloc:          "HS_BAD_ALLOC",
	CodeScratchInUse:      "HS_SCRATCH_IN_USE",
	CodeArchError:         "HS_ARCH_ERROR",
	CodeInsufficientSpace: "HS_INSUFFICIENT_SPACE",
	CodeUnknownError:      "HS_UNKNOWN_ERROR",
}

// String returns the C constant name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("HS_ERROR(%d)", int(c))
}

// Message returns the human-readable description of the code.
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return codeMessages[CodeUnknownError]
}

// Error is a generic engine failure identified only by its status code.
type Error struct {
	Code Code
	// Op optionally names the operation that failed.
	Op string
}

// NewError returns an *Error for code.
func NewError(code Code) *Error {
	return &Error{Code: code}
}

// OpError returns an *Error for code attributed to op.
func OpError(op string, code Code) *Error {
	return &Error{Code: code, Op: op}
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Code.Message(), e.Code)
	}
	return fmt.Sprintf("%s (%s)", e.Code.Message(), e.Code)
}

// Is matches any *Error with the same code, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalid           = NewError(CodeInvalid)
	ErrNoMem             = NewError(CodeNoMem)
	ErrScanTerminated    = NewError(CodeScanTerminated)
	ErrCompiler          = NewError(CodeCompilerError)
	ErrDBVersion         = NewError(CodeDBVersionError)
	ErrDBPlatform        = NewError(CodeDBPlatformError)
	ErrDBMode            = NewError(CodeDBModeError)
	ErrBadAlign          = NewError(CodeBadAlign)
	ErrBadAlloc          = NewError(CodeBadAlloc)
	ErrScratchInUse      = NewError(CodeScratchInUse)
	ErrArch              = NewError(CodeArchError)
	ErrInsufficientSpace = NewError(CodeInsufficientSpace)
	ErrUnknown           = NewError(CodeUnknownError)
)

// CompileError is a compile failure carrying a diagnostic. Expression is the
// zero-based index of the offending pattern, or -1 when the failure is not
// attributable to a single pattern.
type CompileError struct {
	Expression int
	Message    string
}

// NewCompileError returns a diagnostic for the pattern at index.
func NewCompileError(index int, message string) *CompileError {
	return &CompileError{Expression: index, Message: message}
}

func (e *CompileError) Error() string {
	if e.Expression >= 0 {
		return fmt.Sprintf("unable to compile expression #%d: %s", e.Expression, e.Message)
	}
	return fmt.Sprintf("unable to compile expression: %s", e.Message)
}

// Attributable reports whether the failure names a specific pattern.
func (e *CompileError) Attributable() bool {
	return e.Expression >= 0
}

// Is makes errors.Is(err, ErrCompiler) hold for compile diagnostics.
func (e *CompileError) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == CodeCompilerError
	}
	return false
}

// CodeOf extracts the status code from err, or CodeUnknownError when err is
// not an engine error. A nil err yields CodeSuccess.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		return CodeCompilerError
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknownError
}
