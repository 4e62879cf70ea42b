package httpmiddleware

import "testing"

func TestAllow_ConsumesCapacity(t *testing.T) {
	l := NewTokenBucket(3, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed within capacity", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("request beyond capacity should be denied")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := NewTokenBucket(1, 1)

	if !l.Allow("a") {
		t.Fatal("first request for key a should pass")
	}
	if l.Allow("a") {
		t.Error("second request for key a should be denied")
	}
	if !l.Allow("b") {
		t.Error("key b has its own bucket and should pass")
	}
}

func TestNewTokenBucket_DefaultsCapacityToRate(t *testing.T) {
	l := NewTokenBucket(0, 5)
	for i := 0; i < 5; i++ {
		if !l.Allow("x") {
			t.Fatalf("request %d should be allowed, capacity should default to rate", i+1)
		}
	}
	if l.Allow("x") {
		t.Error("sixth request should be denied")
	}
}
