package chainview

// chain_handle_test.go implements tests for handle reference counting and
// misuse detection.

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aalhour/chainview/internal/logging"
)

// expectMisuse runs fn and checks that it panics with ErrHandleMisuse.
func expectMisuse(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		v := recover()
		if v == nil {
			t.Fatal("expected a misuse panic")
		}
		err, ok := v.(error)
		if !ok {
			t.Fatalf("panic value %v is not an error", v)
		}
		if !errors.Is(err, ErrHandleMisuse) || !errors.Is(err, logging.ErrFatal) {
			t.Fatalf("panic error = %v, want ErrHandleMisuse wrapping ErrFatal", err)
		}
	}()
	fn()
}

func TestHandleAcquireReleaseFreesView(t *testing.T) {
	src := &memSource{}
	src.set(buildChain(4)...)
	r := openSourceReader(t, src)

	const n = 5
	handles := make([]*ChainHandle, n)
	for i := range handles {
		handles[i] = acquire(t, r)
	}
	view := handles[0].view
	if got := view.refs.Load(); got != n+1 {
		t.Fatalf("refs = %d, want %d", got, n+1)
	}
	if r.OutstandingHandles() != n {
		t.Errorf("OutstandingHandles = %d, want %d", r.OutstandingHandles(), n)
	}

	// Retire the view so only the handles keep it alive.
	if err := r.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	for i, h := range handles {
		if view.snap.Load() == nil {
			t.Fatalf("view freed with %d handles outstanding", n-i)
		}
		h.Release()
	}
	if view.snap.Load() != nil {
		t.Error("view not freed after last release")
	}
	if view.tryAcquire() {
		t.Error("freed view was acquired")
	}
	if r.OutstandingHandles() != 0 {
		t.Errorf("OutstandingHandles = %d, want 0", r.OutstandingHandles())
	}
	if got := r.opts.Statistics.GetTickerCount(TickerViewsFreed); got != 1 {
		t.Errorf("TickerViewsFreed = %d, want 1", got)
	}
}

func TestHandleCurrentViewNotFreedByHandles(t *testing.T) {
	src := &memSource{}
	src.set(buildChain(2)...)
	r := openSourceReader(t, src)

	for range 10 {
		acquire(t, r).Release()
	}
	h := acquire(t, r)
	defer h.Release()
	if h.Height() != 2 {
		t.Errorf("Height = %d, want 2", h.Height())
	}
}

func TestHandleDoubleRelease(t *testing.T) {
	var out bytes.Buffer
	logger := logging.NewLogger(&out, logging.LevelError)
	var fatal []string
	logger.SetFatalHandler(func(msg string) { fatal = append(fatal, msg) })

	src := &memSource{}
	src.set(buildChain(2)...)
	opts := sourceOptions(src)
	opts.Logger = logger
	r, err := OpenReader(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer r.Close()

	h := acquire(t, r)
	h.Release()
	expectMisuse(t, h.Release)

	if len(fatal) != 1 || !strings.Contains(fatal[0], "double release") {
		t.Errorf("fatal handler calls = %q", fatal)
	}
	if r.OutstandingHandles() != 0 {
		t.Errorf("OutstandingHandles = %d, want 0", r.OutstandingHandles())
	}
}

func TestHandleUseAfterRelease(t *testing.T) {
	src := &memSource{}
	src.set(buildChain(3)...)
	r := openSourceReader(t, src)

	h := acquire(t, r)
	h.Release()

	expectMisuse(t, func() { h.Snapshot() })
	expectMisuse(t, func() { h.At(0) })
	expectMisuse(t, func() { h.Height() })
	expectMisuse(t, func() { h.Tip() })
}

func TestHandleForeignRelease(t *testing.T) {
	src := &memSource{}
	src.set(buildChain(3)...)
	r1 := openSourceReader(t, src)
	r2 := openSourceReader(t, src)

	h := acquire(t, r1)
	expectMisuse(t, func() { r2.Release(h) })
	expectMisuse(t, func() { r2.Release(nil) })
	expectMisuse(t, func() { r2.Release(&ChainHandle{}) })

	// The foreign attempt did not consume the handle.
	r1.Release(h)
	if r1.OutstandingHandles() != 0 {
		t.Errorf("OutstandingHandles = %d, want 0", r1.OutstandingHandles())
	}
}

func TestHandleConcurrentRelease(t *testing.T) {
	src := &memSource{}
	src.set(buildChain(3)...)
	r := openSourceReader(t, src)

	const n = 64
	handles := make([]*ChainHandle, n)
	for i := range handles {
		handles[i] = acquire(t, r)
	}
	view := handles[0].view
	if err := r.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Height()
			h.Release()
		}()
	}
	wg.Wait()

	if got := view.refs.Load(); got != 0 {
		t.Errorf("refs = %d, want 0", got)
	}
	if view.snap.Load() != nil {
		t.Error("view not freed")
	}
}
