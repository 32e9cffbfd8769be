package execctx

import (
	"context"
	"sync"
	"testing"
)

func TestNew_GeneratesCorrelationID(t *testing.T) {
	ec := New("", "tok", "u1", "o1")

	if ec.CorrelationID() == "" {
		t.Fatal("CorrelationID() is empty, want generated id")
	}
	if ec.AuthToken() != "tok" {
		t.Errorf("AuthToken() = %q, want tok", ec.AuthToken())
	}
	if ec.UserID() != "u1" || ec.OrgID() != "o1" {
		t.Errorf("identity = %q/%q, want u1/o1", ec.UserID(), ec.OrgID())
	}
}

func TestNew_KeepsCorrelationID(t *testing.T) {
	ec := New("  abc-123 ", "", "", "")
	if ec.CorrelationID() != "abc-123" {
		t.Errorf("CorrelationID() = %q, want abc-123", ec.CorrelationID())
	}
}

func TestCurrent_WithoutUnitOfWork(t *testing.T) {
	ctx := context.Background()

	a := Current(ctx)
	b := Current(ctx)
	if a.IsZero() || b.IsZero() {
		t.Fatal("Current() returned zero context")
	}
	if a.CorrelationID() == b.CorrelationID() {
		t.Error("Current() without Begin should not cache the context")
	}
}

func TestCurrent_LazyAndCached(t *testing.T) {
	ctx := Begin(context.Background())

	if _, ok := FromContext(ctx); !ok {
		t.Fatal("FromContext() after Begin = false, want true")
	}

	first := Current(ctx)
	for i := 0; i < 5; i++ {
		if got := Current(ctx).CorrelationID(); got != first.CorrelationID() {
			t.Errorf("Current() = %q, want cached %q", got, first.CorrelationID())
		}
	}

	// Begin on an existing unit of work is a no-op.
	if got := Current(Begin(ctx)).CorrelationID(); got != first.CorrelationID() {
		t.Errorf("Current(Begin(ctx)) = %q, want %q", got, first.CorrelationID())
	}
}

func TestCurrent_ConcurrentLazyInit(t *testing.T) {
	ctx := Begin(context.Background())

	var wg sync.WaitGroup
	ids := make([]string, 32)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = Current(ctx).CorrelationID()
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent Current() returned %q and %q", id, ids[0])
		}
	}
}

func TestWithContext_Replaces(t *testing.T) {
	ctx := WithContext(context.Background(), New("first", "", "", ""))
	ctx = WithContext(ctx, New("second", "", "", ""))

	if got := CorrelationIDFromContext(ctx); got != "second" {
		t.Errorf("CorrelationIDFromContext() = %q, want second", got)
	}
}

func TestFromContext_Missing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext() on empty context = true, want false")
	}
	//nolint:staticcheck // nil context is handled explicitly
	if _, ok := FromContext(nil); ok {
		t.Error("FromContext(nil) = true, want false")
	}
}

func TestPropagate_CopiesValue(t *testing.T) {
	caller := WithContext(context.Background(), New("corr-1", "tok", "u", "o"))
	worker := Propagate(caller, context.Background())

	got := Current(worker)
	if got != Current(caller) {
		t.Errorf("Propagate() = %+v, want %+v", got, Current(caller))
	}

	// Replacing the caller's context afterwards does not reach the worker.
	_ = WithContext(caller, New("corr-2", "", "", ""))
	if CorrelationIDFromContext(worker) != "corr-1" {
		t.Errorf("worker correlation id = %q, want corr-1", CorrelationIDFromContext(worker))
	}
}

func TestWithIdentity_IsCopy(t *testing.T) {
	base := New("c", "", "", "")
	updated := base.WithIdentity("u", "o").WithAuthToken("t")

	if base.UserID() != "" || base.AuthToken() != "" {
		t.Error("WithIdentity/WithAuthToken mutated the receiver")
	}
	if updated.UserID() != "u" || updated.OrgID() != "o" || updated.AuthToken() != "t" {
		t.Errorf("updated = %+v", updated)
	}
}
