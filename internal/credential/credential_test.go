package credential

import (
	"testing"

	"github.com/zalando/go-keyring"
)

func TestLookupMissing(t *testing.T) {
	keyring.MockInit()
	got, err := New("patchwatch", "alice").Lookup()
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != "" {
		t.Errorf("Lookup = %q, want empty", got)
	}
}

func TestStoreAndLookup(t *testing.T) {
	keyring.MockInit()
	k := New("patchwatch", "alice")

	if err := k.Store("  tok-123 \n"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := k.Lookup()
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != "tok-123" {
		t.Errorf("Lookup = %q, want tok-123", got)
	}

	if err := k.Store(""); err != nil {
		t.Fatalf("Store(empty): %v", err)
	}
	if got, _ := k.Lookup(); got != "" {
		t.Errorf("after delete Lookup = %q", got)
	}
	if err := k.Store(""); err != nil {
		t.Errorf("deleting a missing entry should succeed: %v", err)
	}
}

func TestResolve(t *testing.T) {
	keyring.MockInit()
	k := New("patchwatch", "alice")
	if err := k.Store("from-keyring"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		explicit string
		want     string
	}{
		{"from-config", "from-config"},
		{"   ", "from-keyring"},
		{"", "from-keyring"},
	}
	for _, tt := range tests {
		got, err := k.Resolve(tt.explicit)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.explicit, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.explicit, got, tt.want)
		}
	}
}

func TestUnconfigured(t *testing.T) {
	keyring.MockInit()
	k := New("", "")
	if got, err := k.Lookup(); err != nil || got != "" {
		t.Errorf("Lookup = %q, %v", got, err)
	}
	if err := k.Store("x"); err == nil {
		t.Error("Store without service/user should fail")
	}
}
