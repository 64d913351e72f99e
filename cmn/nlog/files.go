package nlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fixed is a fixed-capacity byte buffer that doubles as an io.Writer so that
// fmt.Fprintf can format directly into it without an intermediate allocation.
type fixed struct {
	buf  []byte
	woff int
}

func (f *fixed) Write(p []byte) (int, error) {
	n := copy(f.buf[f.woff:], p)
	f.woff += n
	return n, nil
}

func (f *fixed) writeByte(b byte) {
	if f.woff < len(f.buf) {
		f.buf[f.woff] = b
		f.woff++
	}
}

func (f *fixed) writeString(s string) { f.woff += copy(f.buf[f.woff:], s) }
func (f *fixed) eol()                 { f.writeByte('\n') }
func (f *fixed) reset()               { f.woff = 0 }
func (f *fixed) length() int          { return f.woff }
func (f *fixed) size() int            { return len(f.buf) }
func (f *fixed) avail() int           { return len(f.buf) - f.woff }

// flush writes the buffered bytes to w; the caller resets the buffer.
func (f *fixed) flush(w *os.File) (int, error) {
	if f.woff == 0 {
		return 0, nil
	}
	return w.Write(f.buf[:f.woff])
}

func assert(cond bool) {
	if !cond {
		panic("nlog: assertion failed")
	}
}

var (
	host string
	pid  int

	logDir, engineRole, title string
	toStderr, alsoToStderr    bool

	nlogs         [3]*nlog
	onceInitFiles sync.Once

	redactFnames = map[string]struct{}{}

	sevText = [...]string{sevInfo: "INFO", sevWarn: "WARNING", sevErr: "ERROR"}

	pool sync.Pool
)

func init() {
	pid = os.Getpid()
	h, err := os.Hostname()
	if err != nil {
		h = "localhost"
	}
	host = h
}

func initFiles() {
	if logDir == "" {
		logDir = os.TempDir()
	}
	nlogs[sevInfo] = newNlog(sevInfo)
	nlogs[sevErr] = newNlog(sevErr)
	now := time.Now()
	if f, _, err := fcreate(sevText[sevInfo], now); err == nil {
		nlogs[sevInfo].file = f
	} else {
		nlogs[sevInfo].erred.Store(true)
	}
	if f, _, err := fcreate(sevText[sevErr], now); err == nil {
		nlogs[sevErr].file = f
	} else {
		nlogs[sevErr].erred.Store(true)
	}
}

// sname is the base name used to construct log filenames: "<program>.<role>"
// (role is empty for a plain client-style process).
func sname() string {
	prog := filepath.Base(os.Args[0])
	if engineRole == "" {
		return prog
	}
	return prog + "." + engineRole
}

// fcreate creates (or truncates) the log file for the given severity tag and
// symlinks the role-stable name to it, glog-style.
func fcreate(tag string, now time.Time) (f *os.File, path string, err error) {
	name, link := logfname(tag, now)
	path = filepath.Join(logDir, name)
	f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, "", err
	}
	linkPath := filepath.Join(logDir, link)
	os.Remove(linkPath)
	os.Symlink(name, linkPath) //nolint:errcheck // best-effort convenience symlink
	return f, path, nil
}

// used by callers that want a one-line human summary, e.g. on startup.
func String() string {
	return fmt.Sprintf("nlog[%s pid=%d host=%s]", sname(), pid, host)
}
