package vfs

import "errors"

// Code classifies a filesystem error the way POSIX errno does.
//
// The HTTP layer translates codes to status codes; the VFS itself never
// speaks HTTP. Infrastructure failures (connection loss, bad SQL) are not
// given a code and surface as wrapped driver errors instead.
type Code string

const (
	ENOENT    Code = "ENOENT"    // path does not exist
	EEXIST    Code = "EEXIST"    // destination already exists
	EISDIR    Code = "EISDIR"    // expected a file, found a directory
	ENOTDIR   Code = "ENOTDIR"   // expected a directory, found a file
	ENOTEMPTY Code = "ENOTEMPTY" // directory not empty
	EINVAL    Code = "EINVAL"    // invalid argument
	EPERM     Code = "EPERM"     // operation not permitted
	EACCES    Code = "EACCES"    // access denied
	ENOSPC    Code = "ENOSPC"    // no space left
	EFBIG     Code = "EFBIG"     // file too large
)

// Error is the single error type returned for filesystem-level failures.
type Error struct {
	Code    Code
	Op      string // the operation that failed, e.g. "stat", "mkdir"
	Path    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Path != "" {
		return e.Op + " " + e.Path + ": " + msg
	}
	return e.Op + ": " + msg
}

func newError(code Code, op, path, message string) *Error {
	return &Error{Code: code, Op: op, Path: path, Message: message}
}

// CodeOf returns the Code carried by err, or "" if err is not a *vfs.Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotExist reports whether err is an ENOENT filesystem error.
func IsNotExist(err error) bool {
	return CodeOf(err) == ENOENT
}
