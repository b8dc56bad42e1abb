package systems

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestMaterialSystem(t *testing.T) {
	ms, err := NewMaterialSystem(&MaterialSystemConfig{MaxMaterialCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	m, err := ms.Create(DefaultMaterialName, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got := ms.Get(DefaultMaterialName); got != m || got.Pipeline != 3 || got.Layout != 4 {
		t.Fatalf("Get = %+v", got)
	}
	if _, err := ms.Create(DefaultMaterialName, 5, 6); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("duplicate Create = %v", err)
	}
	if _, err := ms.Create("second", 5, 6); err != nil {
		t.Fatal(err)
	}
	if _, err := ms.Create("third", 7, 8); err == nil {
		t.Fatal("Create past MaxMaterialCount succeeded")
	}
}

func TestGetUnknownMaterialPanics(t *testing.T) {
	ms, _ := NewMaterialSystem(&MaterialSystemConfig{MaxMaterialCount: 1})
	defer func() {
		err, ok := recover().(error)
		if !ok || !errors.IsAssertionFailure(err) {
			t.Fatalf("recovered %v, want an assertion failure", err)
		}
	}()
	ms.Get("missing")
}
