package resconf

import (
	"strings"

	"github.com/dnslab/resolv/wire"
)

// SearchState encodes a search-list generator position into one small
// integer so iteration is restartable and side-effect free: the low byte
// is the phase, the next byte the search-list index, the third the cached
// dot count of the query name.
type SearchState uint32

func (s SearchState) phase() int { return int(s & 0xff) }
func (s SearchState) index() int { return int(s >> 8 & 0xff) }
func (s SearchState) ndots() int { return int(s >> 16 & 0xff) }

func searchState(phase, index, ndots int) SearchState {
	return SearchState(phase&0xff) | SearchState(index&0xff)<<8 | SearchState(ndots&0xff)<<16
}

// SearchNext produces the next candidate fqdn for qname. A name with at
// least Options.Ndots dots is tried as-is first; the search-list suffixes
// follow; a name with fewer dots is tried as-is last. ok is false when the
// sequence is exhausted.
func (conf *Config) SearchNext(qname string, state *SearchState) (string, bool) {
	phase := state.phase()
	index := state.index()
	ndots := state.ndots()

	for {
		switch phase {
		case 0:
			ndots = strings.Count(qname, ".")
			phase = 1
			if ndots >= conf.Options.Ndots {
				*state = searchState(phase, index, ndots)
				return wire.Anchor(qname), true
			}
		case 1:
			if index < len(conf.Search) && conf.Search[index] != "" {
				candidate := wire.Anchor(qname) + conf.Search[index]
				index++
				*state = searchState(phase, index, ndots)
				return wire.Anchor(candidate), true
			}
			phase = 2
		case 2:
			phase = 3
			*state = searchState(phase, index, ndots)
			if ndots < conf.Options.Ndots {
				return wire.Anchor(qname), true
			}
			return "", false
		default:
			*state = searchState(phase, index, ndots)
			return "", false
		}
	}
}
