package executor

import (
	"fmt"
	"sync"
)

// PortRegistry hands out local ports to concurrent device sessions.
// The first claimant of a port owns it until Release.
type PortRegistry struct {
	claims sync.Map // port -> owner
}

// Ports is the process-wide registry.
var Ports = &PortRegistry{}

// Claim reports whether owner holds port after the call.
func (r *PortRegistry) Claim(port int, owner string) bool {
	actual, loaded := r.claims.LoadOrStore(port, owner)
	return !loaded || actual.(string) == owner
}

// ClaimFree claims the first free port in [first, last].
func (r *PortRegistry) ClaimFree(first, last int, owner string) (int, error) {
	for p := first; p <= last; p++ {
		if r.Claim(p, owner) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("no free port in %d-%d", first, last)
}

// Owner returns the owner of port.
func (r *PortRegistry) Owner(port int) (string, bool) {
	v, ok := r.claims.Load(port)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Release frees port.
func (r *PortRegistry) Release(port int) {
	r.claims.Delete(port)
}
