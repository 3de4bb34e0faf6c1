package keyer

import (
	"slices"
	"testing"
)

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()
	out := &recorder{now: new(int64)}

	for n := 1; n <= KindCount; n++ {
		k := r.GetKeyerByNumber(n, out)
		if k == nil {
			t.Fatalf("GetKeyerByNumber(%d) = nil", n)
		}
		if got := r.GetKeyerNumber(k); got != n {
			t.Errorf("GetKeyerNumber(keyer %d) = %d", n, got)
		}
		if k.Kind() != Kind(n) {
			t.Errorf("keyer %d has kind %v", n, k.Kind())
		}
	}
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry()
	want := []string{
		"straight", "bug", "electronic bug", "single dot", "ultimatic",
		"iambic", "iambic a", "iambic b", "keyahead",
	}
	var got []string
	for _, k := range r.Keyers() {
		got = append(got, k.Name())
	}
	if !slices.Equal(got, want) {
		t.Errorf("Keyers() names = %q, want %q", got, want)
	}
}

func TestRegistryOutOfRange(t *testing.T) {
	r := NewRegistry()
	for _, n := range []int{NoKeyer, -1, 10, 99} {
		if k := r.GetKeyerByNumber(n, nil); k != nil {
			t.Errorf("GetKeyerByNumber(%d) = %v, want nil", n, k.Name())
		}
	}
	if got := r.GetKeyerNumber(nil); got != 1 {
		t.Errorf("GetKeyerNumber(nil) = %d, want 1", got)
	}
}

func TestRegistryForeignKeyerIsStraight(t *testing.T) {
	r := NewRegistry()
	if got := r.GetKeyerNumber(New(KindIambicB)); got != 1 {
		t.Errorf("GetKeyerNumber(foreign) = %d, want 1", got)
	}
}

func TestRegistryReturnsSameInstance(t *testing.T) {
	r := NewRegistry()
	a := r.GetKeyerByNumber(6, nil)
	b := r.GetKeyerByNumber(6, nil)
	if a != b {
		t.Error("GetKeyerByNumber returned two instances for selector 6")
	}
}

func TestRegistryRebindsOutput(t *testing.T) {
	r := NewRegistry()
	first := &recorder{now: new(int64)}
	second := &recorder{now: new(int64)}

	k := r.GetKeyerByNumber(int(KindStraight), first)
	k.Key(Dit, true)
	k.Release()

	k = r.GetKeyerByNumber(int(KindStraight), second)
	k.Key(Dah, true)

	if first.begins != 1 || first.ends != 1 {
		t.Errorf("first output: begins=%d ends=%d, want 1 and 1", first.begins, first.ends)
	}
	if second.begins != 1 {
		t.Errorf("second output: begins=%d, want 1", second.begins)
	}
	if !second.txActive {
		t.Error("second output not transmitting")
	}
}

func TestName(t *testing.T) {
	tests := map[int]string{
		NoKeyer: "passthrough",
		8:       "iambic b",
		42:      "none",
	}
	for n, want := range tests {
		if got := Name(n); got != want {
			t.Errorf("Name(%d) = %q, want %q", n, got, want)
		}
	}
}
