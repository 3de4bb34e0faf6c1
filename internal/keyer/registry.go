package keyer

// NoKeyer is the selector for raw paddle passthrough.
const NoKeyer = 0

// Registry owns one keyer of each kind for the life of the process.
// Selector n in 1..9 maps to Kind(n).
type Registry struct {
	arena [KindCount]Keyer
}

// NewRegistry creates a registry with every keyer reset.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.arena {
		k := &r.arena[i]
		k.kind = Kind(i + 1)
		k.output = nopTransmitter{}
		k.Reset()
	}
	return r
}

// GetKeyerByNumber binds t to the keyer with selector n and returns it.
// Selector 0 and anything out of range return nil.
func (r *Registry) GetKeyerByNumber(n int, t Transmitter) *Keyer {
	if n < 1 || n > KindCount {
		return nil
	}
	k := &r.arena[n-1]
	k.SetOutput(t)
	return k
}

// GetKeyerNumber returns the selector of k. Nil and keyers not owned by
// this registry report 1 (straight).
func (r *Registry) GetKeyerNumber(k *Keyer) int {
	for i := range r.arena {
		if &r.arena[i] == k {
			return i + 1
		}
	}
	return int(KindStraight)
}

// Keyers returns the nine keyers in selector order.
func (r *Registry) Keyers() []*Keyer {
	out := make([]*Keyer, 0, KindCount)
	for i := range r.arena {
		out = append(out, &r.arena[i])
	}
	return out
}

// Name returns the display name for selector n.
func Name(n int) string {
	if n == NoKeyer {
		return "passthrough"
	}
	return Kind(n).String()
}
