package domain_test

import (
	"testing"

	"go.trai.ch/kiln/internal/core/domain"
)

func TestComputeCacheKey_Deterministic(t *testing.T) {
	k1 := domain.ComputeCacheKey("own", "deps")
	k2 := domain.ComputeCacheKey("own", "deps")
	if k1 != k2 {
		t.Error("same inputs must produce the same key")
	}
	if len(k1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(k1))
	}
}

func TestComputeCacheKey_SensitiveToInputs(t *testing.T) {
	base := domain.ComputeCacheKey("own", "deps")

	if got := domain.ComputeCacheKey("other", "deps"); got == base {
		t.Error("changing own fingerprint must change the key")
	}
	if got := domain.ComputeCacheKey("own", "deps2"); got == base {
		t.Error("changing the dependency fingerprint must change the key")
	}
	if got := domain.ComputeCacheKey("own", ""); got == base {
		t.Error("dropping the dependency fingerprint must change the key")
	}
}

func TestComputeCacheKey_SeparatesOwnFromDeps(t *testing.T) {
	// The two inputs must not be interchangeable halves of one blob.
	k1 := domain.ComputeCacheKey("ab", "c")
	k2 := domain.ComputeCacheKey("a", "bc")
	if k1 == k2 {
		t.Error("own and dependency fingerprints must hash as distinct fields")
	}
}
