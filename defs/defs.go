// Package defs holds the status codes, identifier types, and panic
// helper shared by the view cache and object table cores.
package defs

import "fmt"

// Err_t is a small negative-int status code, in the same style as the
// kernel's own NTSTATUS-flavored error codes: zero is success, negative
// values name a specific failure.
type Err_t int

// Status taxonomy (spec §7). The first five are recoverable; Unsuccessful
// means "no VACB covered that offset" and is caller-survivable.
const (
	Ok                  Err_t = 0
	EINVAL              Err_t = -1 // invalid_parameter
	ENOMEM              Err_t = -2 // insufficient_resources
	EEOF                Err_t = -3 // end_of_file
	EWRITEPROTECT       Err_t = -4 // media_write_protected
	EUNSUCCESSFUL       Err_t = -5 // unsuccessful: no VACB covers the offset
)

// String renders an Err_t for logging.
func (e Err_t) String() string {
	switch e {
	case Ok:
		return "ok"
	case EINVAL:
		return "invalid_parameter"
	case ENOMEM:
		return "insufficient_resources"
	case EEOF:
		return "end_of_file"
	case EWRITEPROTECT:
		return "media_write_protected"
	case EUNSUCCESSFUL:
		return "unsuccessful"
	default:
		return fmt.Sprintf("Err_t(%d)", int(e))
	}
}

// Recoverable reports whether e is a status a caller can survive: the
// five recoverable statuses of spec §7 (Ok through EWRITEPROTECT) plus
// the caller-survivable EUNSUCCESSFUL.
func (e Err_t) Recoverable() bool {
	switch e {
	case Ok, EINVAL, ENOMEM, EEOF, EWRITEPROTECT, EUNSUCCESSFUL:
		return true
	default:
		return false
	}
}

// BugCheck halts the process for an invariant violation: a stale handle
// with no entry, a double-free of a stock object, marking dirty a
// nonexistent VACB. These are bugs in callers, not environmental errors
// (spec §4.3), so they panic rather than return a status.
func BugCheck(format string, args ...interface{}) {
	panic(fmt.Sprintf("bug_check: "+format, args...))
}

// Pid_t identifies an owning process for handle-table accounting.
type Pid_t uint32

// NoPid is the owner value of global ("stock") objects.
const NoPid Pid_t = 0
