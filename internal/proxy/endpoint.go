package proxy

import (
	"math/rand/v2"
	"net/netip"
	"regexp"
	"slices"
)

var endpointPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}:\d{2,5}\b`)

// Endpoint is an opaque address:port relay identifier.
type Endpoint string

func (e Endpoint) String() string {
	return string(e)
}

// ExtractEndpoints returns every well-formed IPv4 address:port substring of text, deduplicated.
func ExtractEndpoints(text string) []Endpoint {
	seen := make(map[Endpoint]struct{})
	var out []Endpoint
	for _, m := range endpointPattern.FindAllString(text, -1) {
		ap, err := netip.ParseAddrPort(m)
		if err != nil || !ap.Addr().Is4() || ap.Port() == 0 {
			continue
		}
		e := Endpoint(ap.String())
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Set is an immutable snapshot of relays. Never mutated after NewSet, so reads need no lock.
type Set struct {
	endpoints []Endpoint
}

func NewSet(endpoints []Endpoint) *Set {
	seen := make(map[Endpoint]struct{}, len(endpoints))
	list := make([]Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		list = append(list, e)
	}
	return &Set{endpoints: list}
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.endpoints)
}

func (s *Set) Empty() bool {
	return s.Len() == 0
}

// Random picks uniformly; no reputation is tracked so a relay that just failed can come back.
func (s *Set) Random() Endpoint {
	return s.endpoints[rand.IntN(len(s.endpoints))]
}

// Shuffled returns a copy of the endpoints in random order.
func (s *Set) Shuffled() []Endpoint {
	out := s.All()
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (s *Set) All() []Endpoint {
	if s == nil {
		return nil
	}
	return slices.Clone(s.endpoints)
}

func (s *Set) Contains(e Endpoint) bool {
	return s != nil && slices.Contains(s.endpoints, e)
}
