package cache

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("t1", "hello world", "analyze")
	b := Fingerprint("t1", "hello world", "analyze")
	if a != b {
		t.Fatalf("fingerprint not stable")
	}
	if a == Fingerprint("t2", "hello world", "analyze") {
		t.Fatalf("task id must affect fingerprint")
	}
	if a == Fingerprint("t1", "hello world", "classify") {
		t.Fatalf("task type must affect fingerprint")
	}
}

func TestFingerprintUsesContentPrefixOnly(t *testing.T) {
	prefix := strings.Repeat("a", FingerprintPrefixLen)
	a := Fingerprint("t1", prefix+"tail-one", "analyze")
	b := Fingerprint("t1", prefix+"tail-two", "analyze")
	if a != b {
		t.Fatalf("content beyond the prefix must not affect the fingerprint")
	}
}

func TestRoundTrip(t *testing.T) {
	c := New[string](8, time.Minute)
	fp := Fingerprint("t1", "body", "analyze")
	c.Put(fp, "result")

	got, ok := c.Get(fp)
	if !ok || got != "result" {
		t.Fatalf("round trip failed: %q %v", got, ok)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New[string](8, 30*time.Millisecond)
	fp := Fingerprint("t1", "body", "analyze")
	c.Put(fp, "result")

	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Get(fp); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestCapacityBound(t *testing.T) {
	c := New[int](4, time.Minute)
	for i := 0; i < 20; i++ {
		c.Put(Fingerprint("t", string(rune('a'+i)), "analyze"), i)
	}
	if c.Len() > 4 {
		t.Fatalf("capacity bound exceeded: %d", c.Len())
	}
}

func TestConcurrentWritesSameFingerprint(t *testing.T) {
	c := New[int](8, time.Minute)
	fp := Fingerprint("t1", "same body", "analyze")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put(fp, 42) // equivalent value from identical computations
		}()
	}
	wg.Wait()

	got, ok := c.Get(fp)
	if !ok || got != 42 {
		t.Fatalf("expected single surviving equivalent entry, got %v %v", got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("expected exactly one entry for the fingerprint, got %d", c.Len())
	}
}
