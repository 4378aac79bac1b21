package cache

import (
	"sync"
	"time"

	"github.com/dnslab/resolv/wire"
)

type cacheQtype struct {
	mu    sync.RWMutex
	cache map[string]cacheValue
}

func newCacheQtype() *cacheQtype {
	return &cacheQtype{cache: make(map[string]cacheValue)}
}

func (cq *cacheQtype) entries() (n int) {
	cq.mu.RLock()
	n = len(cq.cache)
	cq.mu.RUnlock()
	return
}

func (cq *cacheQtype) set(qname string, msg *wire.Packet, ttl time.Duration) {
	expires := time.Now().Add(ttl)
	cq.mu.Lock()
	cq.cache[qname] = cacheValue{Packet: msg, expires: expires}
	cq.mu.Unlock()
}

func (cq *cacheQtype) get(qname string) *wire.Packet {
	cq.mu.RLock()
	cv := cq.cache[qname]
	cq.mu.RUnlock()
	if cv.Packet != nil {
		if time.Since(cv.expires) < 0 {
			return cv.Packet
		}
		cq.mu.Lock()
		delete(cq.cache, qname)
		cq.mu.Unlock()
	}
	return nil
}

func (cq *cacheQtype) clear() {
	cq.clean(time.Time{})
}

func (cq *cacheQtype) clean(now time.Time) {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	for qname, cv := range cq.cache {
		if now.IsZero() || now.After(cv.expires) {
			delete(cq.cache, qname)
		}
	}
}
