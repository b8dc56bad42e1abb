package containers

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestHandleTable(t *testing.T) {
	table := NewHandleTable[string]()
	a := table.Acquire("a")
	b := table.Acquire("b")
	if a == 0 || b == 0 || a == b {
		t.Fatalf("Acquire returned ids %d and %d", a, b)
	}
	if owner, ok := table.Get(b); !ok || owner != "b" {
		t.Fatalf("Get(%d) = %q, %v", b, owner, ok)
	}
	if _, err := table.Release(a); err != nil {
		t.Fatalf("Release(%d): %v", a, err)
	}
	if _, err := table.Release(a); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("second Release(%d) = %v, want ErrInvalidHandle", a, err)
	}
	if c := table.Acquire("c"); c == a {
		t.Fatalf("released id %d was reused", a)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
}
