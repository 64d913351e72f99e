// Package cos provides common low-level types and utilities shared by every
// package in the engine: typed errors, ID generation, and small syscall
// helpers.
package cos

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	ratomic "sync/atomic"
	"syscall"

	"github.com/pjrmi/pjrmi-go/cmn/debug"
	"github.com/pjrmi/pjrmi-go/cmn/nlog"
)

type (
	ErrNotFound struct {
		what string
	}
	ErrSignal struct {
		signal syscall.Signal
	}
	// Errs aggregates up to maxErrs distinct errors, e.g. from a fan-out of
	// independent operations that each may fail.
	Errs struct {
		errs []error
		cnt  int64
		mu   sync.Mutex
	}
)

// The eight wire-visible error kinds from the dispatcher's error-handling
// design: every exception frame the dispatcher sends back carries one of
// these as its underlying cause.
type (
	// ErrMalformedRequest covers a bad message-kind byte, a short/truncated
	// payload, or an out-of-range type/callable index.
	ErrMalformedRequest struct{ Reason string }
	// ErrAccessDenied covers a class-not-permitted, class-injection-not-
	// permitted, or authentication-rejected outcome.
	ErrAccessDenied struct{ Reason string }
	// ErrValueConversion covers overflow, loss of precision, or an
	// unhandled target type during marshalling.
	ErrValueConversion struct{ Reason string }
	// ErrReflection wraps a reflection/invocation failure; Cause is the
	// unwrapped original (not the wrapper the host runtime produced).
	ErrReflection struct {
		Cause error
	}
	// ErrDeadlock is raised by the lock manager when granting an
	// acquisition would close a cycle in the waits-for graph.
	ErrDeadlock struct{ Reason string }
	// ErrRecursionDepth is raised when a connection's synchronous call
	// depth exceeds the configured maximum.
	ErrRecursionDepth struct{ Max int }
	// ErrFutureTimeout is raised by a future's timed wait.
	ErrFutureTimeout struct{}
	// ErrClientCallback wraps an exception thrown by the client's own code
	// during a callback round-trip.
	ErrClientCallback struct {
		Cause error
	}
)

func (e *ErrMalformedRequest) Error() string { return "malformed request: " + e.Reason }
func (e *ErrAccessDenied) Error() string     { return "access denied: " + e.Reason }
func (e *ErrValueConversion) Error() string  { return "value conversion failed: " + e.Reason }
func (e *ErrReflection) Error() string       { return "reflection call failed: " + e.Cause.Error() }
func (e *ErrReflection) Unwrap() error       { return e.Cause }
func (e *ErrDeadlock) Error() string         { return "deadlock detected: " + e.Reason }
func (e *ErrRecursionDepth) Error() string {
	return fmt.Sprintf("recursion depth exceeded (max %d)", e.Max)
}
func (e *ErrFutureTimeout) Error() string  { return "future wait timed out" }
func (e *ErrClientCallback) Error() string { return "client callback exception: " + e.Cause.Error() }
func (e *ErrClientCallback) Unwrap() error { return e.Cause }

// ErrNotFound

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

// Errs
// add Unwrap() if need be

const maxErrs = 4

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	// first, check for duplication
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			e.mu.Unlock()
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
		ratomic.StoreInt64(&e.cnt, int64(len(e.errs)))
	}
	e.mu.Unlock()
}

func (e *Errs) Cnt() int { return int(ratomic.LoadInt64(&e.cnt)) }

func (e *Errs) JoinErr() (cnt int, err error) {
	if cnt = e.Cnt(); cnt > 0 {
		e.mu.Lock()
		err = errors.Join(e.errs...) // up to maxErrs
		e.mu.Unlock()
	}
	return
}

// Errs is an error
func (e *Errs) Error() (s string) {
	var (
		err error
		cnt = e.Cnt()
	)
	if cnt == 0 {
		return
	}
	e.mu.Lock()
	if cnt = len(e.errs); cnt > 0 {
		err = e.errs[0]
	}
	e.mu.Unlock()
	if err == nil {
		return // unlikely
	}
	if cnt > 1 {
		err = fmt.Errorf("%v (and %d more error%s)", err, cnt-1, Plural(cnt-1))
	}
	s = err.Error()
	return
}

// Plural returns "s" unless n == 1 — the usual English pluralization used
// in log lines and error messages throughout.
func Plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// IsEOF reports whether err is (or wraps) io.EOF or io.ErrUnexpectedEOF, the
// two flavors of "the peer stopped sending frames".
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

//
// IS-syscall helpers
//

func UnwrapSyscallErr(err error) error {
	if syscallErr, ok := err.(*os.SyscallError); ok {
		return syscallErr.Unwrap()
	}
	return nil
}

func IsErrSyscallTimeout(err error) bool {
	syscallErr, ok := err.(*os.SyscallError)
	return ok && syscallErr.Timeout()
}

// likely out of socket descriptors
func IsErrConnectionNotAvail(err error) (yes bool) {
	return errors.Is(err, syscall.EADDRNOTAVAIL)
}

// retriable conn errs
func IsErrConnectionRefused(err error) (yes bool) { return errors.Is(err, syscall.ECONNREFUSED) }
func IsErrConnectionReset(err error) (yes bool)   { return errors.Is(err, syscall.ECONNRESET) }
func IsErrBrokenPipe(err error) (yes bool)        { return errors.Is(err, syscall.EPIPE) }

func IsRetriableConnErr(err error) (yes bool) {
	return IsErrConnectionRefused(err) || IsErrConnectionReset(err) || IsErrBrokenPipe(err)
}

func isErrDNSLookup(err error) bool {
	_, ok := err.(*net.DNSError)
	return ok
}

func IsUnreachable(err error, status int) bool {
	return IsErrConnectionRefused(err) ||
		isErrDNSLookup(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		status == http.StatusRequestTimeout ||
		status == http.StatusServiceUnavailable ||
		IsEOF(err) ||
		status == http.StatusBadGateway
}

//
// ErrSignal
//

// https://tldp.org/LDP/abs/html/exitcodes.html
func (e *ErrSignal) ExitCode() int               { return 128 + int(e.signal) }
func NewSignalError(s syscall.Signal) *ErrSignal { return &ErrSignal{signal: s} }
func (e *ErrSignal) Error() string               { return fmt.Sprintf("Signal %d", e.signal) }

//
// Abnormal Termination
//

const fatalPrefix = "FATAL ERROR: "

func Exitf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	_exit(msg)
}

// +log
func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	if flag.Parsed() {
		nlog.ErrorDepth(1, msg+"\n")
		nlog.Flush(true)
	}
	_exit(msg)
}

func ExitLog(a ...any) {
	msg := fatalPrefix + fmt.Sprint(a...)
	if flag.Parsed() {
		nlog.ErrorDepth(1, msg+"\n")
		nlog.Flush(true)
	}
	_exit(msg)
}

func _exit(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

//
// url.Error
//

func Err2ClientURLErr(err error) (uerr *url.Error) {
	if e, ok := err.(*url.Error); ok {
		uerr = e
	}
	return
}

func IsErrClientURLTimeout(err error) bool {
	uerr := Err2ClientURLErr(err)
	return uerr != nil && uerr.Timeout()
}
