package requestid

import (
	"testing"

	"github.com/google/uuid"
)

func TestNew_Unique(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	b, err := New()
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("id %q is not a uuid: %v", a, err)
	}
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
}
