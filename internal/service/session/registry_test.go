package session

import (
	"testing"
	"time"
)

type fakeConn struct {
	terminated bool
}

func (c *fakeConn) Terminate() { c.terminated = true }

func TestGetOrCreateIsIdempotent(t *testing.T) {
	r := NewRegistry()

	a := r.GetOrCreate("s1")
	b := r.GetOrCreate("s1")
	if a != b {
		t.Fatal("GetOrCreate returned distinct sessions for the same id")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestAttachConnReplacesAndTerminatesPrevious(t *testing.T) {
	r := NewRegistry()

	old := &fakeConn{}
	next := &fakeConn{}

	r.AttachConn("s1", old)
	r.AttachConn("s1", next)

	if !old.terminated {
		t.Fatal("previous connection was not terminated on reattach")
	}
	if next.terminated {
		t.Fatal("new connection must stay open")
	}
	if r.Conn("s1") != next {
		t.Fatal("registry does not hold the newly attached connection")
	}
}

func TestRemoveTerminatesConnAndDeletesEntry(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}
	r.AttachConn("s1", c)

	r.Remove("s1")

	if !c.terminated {
		t.Fatal("Remove did not terminate the attached connection")
	}
	if r.Has("s1") {
		t.Fatal("session still present after Remove")
	}

	// Removing again must be a no-op.
	r.Remove("s1")
}

func TestRemoveIfAttachedIgnoresReplacedConn(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{}
	next := &fakeConn{}

	r.AttachConn("s1", old)
	r.AttachConn("s1", next)

	// The replaced connection closing must not tear down the session.
	if r.RemoveIfAttached("s1", old) {
		t.Fatal("RemoveIfAttached removed session owned by a newer connection")
	}
	if !r.Has("s1") {
		t.Fatal("session disappeared")
	}

	if !r.RemoveIfAttached("s1", next) {
		t.Fatal("RemoveIfAttached refused the currently attached connection")
	}
	if r.Has("s1") {
		t.Fatal("session still present")
	}
}

func TestTokenBucketBurstThenDeny(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRegistry(WithClock(func() time.Time { return now }))
	r.GetOrCreate("s1")

	for i := 0; i < DefaultBurst; i++ {
		if !r.AllowMessage("s1") {
			t.Fatalf("call %d denied within burst capacity", i+1)
		}
	}
	if r.AllowMessage("s1") {
		t.Fatalf("call %d allowed beyond burst capacity", DefaultBurst+1)
	}
}

func TestTokenBucketLazyRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRegistry(WithClock(func() time.Time { return now }))
	r.GetOrCreate("s1")

	for i := 0; i < DefaultBurst; i++ {
		r.AllowMessage("s1")
	}
	if r.AllowMessage("s1") {
		t.Fatal("bucket should be empty")
	}

	// Two minutes restores min(60, 0 + 2*30) = 60 tokens.
	now = now.Add(2 * time.Minute)
	for i := 0; i < DefaultBurst; i++ {
		if !r.AllowMessage("s1") {
			t.Fatalf("call %d denied after full refill", i+1)
		}
	}
	if r.AllowMessage("s1") {
		t.Fatal("refill must cap at capacity")
	}
}

func TestTokenBucketFractionalRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRegistry(WithClock(func() time.Time { return now }))
	r.GetOrCreate("s1")

	for i := 0; i < DefaultBurst; i++ {
		r.AllowMessage("s1")
	}

	// One second refills 0.5 tokens: still below one whole token.
	now = now.Add(time.Second)
	if r.AllowMessage("s1") {
		t.Fatal("allowed with only a fractional token")
	}

	// Another second reaches one token.
	now = now.Add(time.Second)
	if !r.AllowMessage("s1") {
		t.Fatal("denied after accumulating a whole token")
	}
}

func TestAllowMessageUnknownSession(t *testing.T) {
	r := NewRegistry()
	if r.AllowMessage("missing") {
		t.Fatal("unknown session must be denied")
	}
}

func TestCloseTerminatesEverything(t *testing.T) {
	r := NewRegistry()
	a := &fakeConn{}
	b := &fakeConn{}
	r.AttachConn("s1", a)
	r.AttachConn("s2", b)

	r.Close()

	if !a.terminated || !b.terminated {
		t.Fatal("Close left connections open")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d after Close, want 0", r.Len())
	}
}
