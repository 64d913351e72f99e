// Package shm implements the shared-memory side channel: typed primitive
// arrays are exchanged by writing/mapping a file under a shared directory
// (conventionally /dev/shm) rather than inlining their bytes on the wire,
// for same-host clients: a connection's dispatcher gets the store only when
// its transport reports the peer on the same host.
//
// Grounded on the teacher's direct-syscall style (x/sys/unix Mmap/Munmap
// used directly rather than through a higher-level wrapper, as in its
// memsys package) and its hk housekeeper for periodic cleanup, generalized
// from page-aligned slab checksums to typed-array segments named by a
// generated filename.
package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/karrick/godirwalk"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/cmn/nlog"
	"github.com/pjrmi/pjrmi-go/hk"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
)

// FilePrefix names every segment this store creates, so the janitor sweep
// never touches unrelated files that happen to live in Dir.
const FilePrefix = "pjrmi-"

// DefaultJanitorInterval is how often the background sweep runs.
const DefaultJanitorInterval = time.Minute

// DefaultMaxAge bounds how long an unreferenced segment is kept before the
// janitor reclaims it.
const DefaultMaxAge = 10 * time.Minute

type segment struct {
	createdAt time.Time
}

// Store owns one shared-memory directory: it creates and maps segments for
// outbound (ReturnShm) results, maps existing segments named by an incoming
// ArgSharedMemory descriptor, and periodically reaps segments nobody has
// touched in a while.
type Store struct {
	Dir    string
	MaxAge time.Duration

	mu   sync.Mutex
	live map[string]*segment
}

// New creates a Store rooted at dir (created if it does not already exist)
// and registers its janitor sweep with the package-wide housekeeper.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("shm: creating %s: %w", dir, err)
	}
	s := &Store{Dir: dir, MaxAge: DefaultMaxAge, live: make(map[string]*segment)}
	hk.Reg("shm-janitor-"+dir, s.sweep, DefaultJanitorInterval)
	return s, nil
}

// WriteArray implements dispatch.ShmWriter: it packs data into a freshly
// mapped segment under Dir and returns the filename/count a client maps to
// read it without a second round trip.
func (s *Store) WriteArray(elem typereg.PrimitiveKind, data any) (string, int32, error) {
	packed, err := marshal.PackPrimitiveArray(elem, data)
	if err != nil {
		return "", 0, err
	}
	count, err := elemCount(elem, data)
	if err != nil {
		return "", 0, err
	}

	name := FilePrefix + cos.GenUUID()
	path := filepath.Join(s.Dir, name)
	if err := mmapWrite(path, packed); err != nil {
		return "", 0, err
	}

	s.mu.Lock()
	s.live[name] = &segment{createdAt: time.Now()}
	s.mu.Unlock()

	return path, count, nil
}

// ReadArray implements dispatch.ShmWriter's read side: it maps the segment
// ref names and unpacks it into ref.Elem's typed Go slice.
func (s *Store) ReadArray(ref marshal.SharedMemRef) (any, error) {
	raw, err := mmapRead(ref.Filename)
	if err != nil {
		return nil, err
	}
	data, err := marshal.UnpackPrimitiveArray(ref.Elem, int(ref.Count), raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if seg, ok := s.live[filepath.Base(ref.Filename)]; ok {
		seg.createdAt = time.Now() // touched: push back the janitor's clock
	}
	s.mu.Unlock()

	return data, nil
}

// Drop removes one segment immediately, for a host that knows a particular
// array is no longer needed (e.g. the connection that owned it closed).
func (s *Store) Drop(filename string) error {
	name := filepath.Base(filename)
	s.mu.Lock()
	delete(s.live, name)
	s.mu.Unlock()
	err := os.Remove(filepath.Join(s.Dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// sweep is the janitor's housekeeping pass: it walks Dir and removes every
// pjrmi segment untouched for longer than MaxAge, including ones this
// process never learned about (e.g. left behind by a prior process that
// crashed before cleaning up).
func (s *Store) sweep() time.Duration {
	cutoff := time.Now().Add(-s.MaxAge)
	var reaped int

	err := godirwalk.Walk(s.Dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			name := de.Name()
			if path == s.Dir || !de.IsRegular() || len(name) <= len(FilePrefix) || name[:len(FilePrefix)] != FilePrefix {
				return nil
			}
			if s.segmentLiveAfter(name, cutoff) {
				return nil
			}
			if err := os.Remove(path); err == nil {
				reaped++
			}
			s.mu.Lock()
			delete(s.live, name)
			s.mu.Unlock()
			return nil
		},
	})
	if err != nil {
		nlog.Errorf("shm: janitor sweep of %s: %v", s.Dir, err)
	} else if reaped > 0 {
		nlog.Infof("shm: janitor reaped %d orphaned segment(s) under %s", reaped, s.Dir)
	}
	return 0 // re-arm at DefaultJanitorInterval
}

func (s *Store) segmentLiveAfter(name string, cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.live[name]
	if !ok {
		// Unknown to this process: fall back to the file's own mtime so a
		// segment left by a process that has since exited is still reaped.
		fi, err := os.Stat(filepath.Join(s.Dir, name))
		return err == nil && fi.ModTime().After(cutoff)
	}
	return seg.createdAt.After(cutoff)
}

func elemCount(elem typereg.PrimitiveKind, data any) (int32, error) {
	switch elem {
	case typereg.PrimBoolean:
		return int32(len(data.([]bool))), nil
	case typereg.PrimByte:
		return int32(len(data.([]byte))), nil
	case typereg.PrimShort:
		return int32(len(data.([]int16))), nil
	case typereg.PrimInt:
		return int32(len(data.([]int32))), nil
	case typereg.PrimLong:
		return int32(len(data.([]int64))), nil
	case typereg.PrimFloat:
		return int32(len(data.([]float32))), nil
	case typereg.PrimDouble:
		return int32(len(data.([]float64))), nil
	default:
		return 0, fmt.Errorf("shm: %s has no element count", elem)
	}
}
