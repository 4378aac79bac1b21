// Package cache keeps completed answers keyed by question name and type,
// with TTL-derived expiry, for resolvers that want to skip repeat
// lookups.
package cache

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/dnslab/resolv/wire"
)

const DefaultMinTTL = 10 * time.Second // ten seconds
const DefaultMaxTTL = 6 * time.Hour    // six hours
const DefaultNXTTL = time.Hour         // one hour
const MaxQtype = 260

// Cache shards answers per question type. It is safe for concurrent use.
type Cache struct {
	MinTTL time.Duration // always cache answers for at least this long
	MaxTTL time.Duration // never cache answers for longer than this (excepting successful NS answers)
	NXTTL  time.Duration // cache NXDOMAIN answers for this long
	count  atomic.Uint64
	hits   atomic.Uint64
	cq     []*cacheQtype
}

func New() *Cache {
	cq := make([]*cacheQtype, MaxQtype+1)
	for i := range cq {
		cq[i] = newCacheQtype()
	}
	return &Cache{
		MinTTL: DefaultMinTTL,
		MaxTTL: DefaultMaxTTL,
		NXTTL:  DefaultNXTTL,
		cq:     cq,
	}
}

// HitRatio returns the hit ratio as a percentage.
func (cache *Cache) HitRatio() (n float64) {
	if cache != nil {
		if count := cache.count.Load(); count > 0 {
			n = float64(cache.hits.Load()*100) / float64(count)
		}
	}
	return
}

// Entries returns the number of entries in the cache.
func (cache *Cache) Entries() (n int) {
	if cache != nil {
		for _, cq := range cache.cq {
			n += cq.entries()
		}
	}
	return
}

// Set stores a copy of the answer under its question. Messages without
// exactly one question are ignored.
func (cache *Cache) Set(msg *wire.Packet) {
	if cache == nil || msg == nil || msg.Count(wire.SectionQD) != 1 {
		return
	}
	rr, err := msg.Question()
	if err != nil {
		return
	}
	qname, err := msg.ExpandName(rr.NameOff)
	if err != nil {
		return
	}
	if qtype := rr.Type; qtype <= MaxQtype {
		ttl := cache.NXTTL
		if msg.Rcode() != wire.RcodeNXDomain {
			ttl = max(cache.MinTTL, time.Duration(minPacketTTL(msg))*time.Second)
			if qtype != wire.TypeNS || msg.Rcode() != wire.RcodeNoError {
				ttl = min(cache.MaxTTL, ttl)
			}
		}
		cache.cq[qtype].set(qname, wire.Copy(msg), ttl)
	}
}

// Get returns a copy of the cached answer for the question, or nil.
func (cache *Cache) Get(qname string, qtype wire.Type) (msg *wire.Packet) {
	if cache != nil {
		cache.count.Add(1)
		if qtype <= MaxQtype {
			if cached := cache.cq[qtype].get(qname); cached != nil {
				cache.hits.Add(1)
				msg = wire.Copy(cached)
			}
		}
	}
	return
}

// Clear drops every entry.
func (cache *Cache) Clear() {
	if cache != nil {
		for _, cq := range cache.cq {
			cq.clear()
		}
	}
}

// Clean drops expired entries.
func (cache *Cache) Clean() {
	if cache != nil {
		now := time.Now()
		for _, cq := range cache.cq {
			cq.clean(now)
		}
	}
}

// minPacketTTL returns the smallest record TTL in the answer, or -1 when
// it holds no records.
func minPacketTTL(msg *wire.Packet) (minTTL int) {
	minTTL = math.MaxInt
	it := wire.Iter{Section: wire.SectionAll &^ wire.SectionQD}
	it.Init(msg, nil)
	for {
		rr, ok := it.Next(msg)
		if !ok {
			break
		}
		if rr.Type == wire.TypeOPT {
			continue
		}
		minTTL = min(minTTL, int(rr.TTL))
	}
	if minTTL == math.MaxInt {
		minTTL = -1
	}
	return
}
