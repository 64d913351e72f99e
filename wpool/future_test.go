package wpool_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/wire"
	"github.com/pjrmi/pjrmi-go/wpool"
)

func TestFutureSecondRetrievalFails(t *testing.T) {
	p := wpool.New(wpool.Direct, 1)
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}

	fut := p.DispatchAsync(tid, func() *wire.Frame {
		return &wire.Frame{Kind: wire.KindAck}
	})

	if _, err := fut.Wait(time.Second); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	if _, err := fut.Wait(time.Second); !errors.Is(err, wpool.ErrAlreadyRetrieved) {
		t.Fatalf("expected ErrAlreadyRetrieved on second retrieval, got %v", err)
	}
}

func TestFutureWaitTimesOut(t *testing.T) {
	p := wpool.New(wpool.Direct, 1)
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}
	release := make(chan struct{})

	fut := p.DispatchAsync(tid, func() *wire.Frame {
		<-release
		return &wire.Frame{Kind: wire.KindAck}
	})

	_, err := fut.Wait(20 * time.Millisecond)
	if _, ok := err.(*cos.ErrFutureTimeout); !ok {
		t.Fatalf("expected *cos.ErrFutureTimeout, got %T: %v", err, err)
	}
	close(release)
}
