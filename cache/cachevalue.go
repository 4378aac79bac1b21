package cache

import (
	"time"

	"github.com/dnslab/resolv/wire"
)

type cacheValue struct {
	*wire.Packet
	expires time.Time
}
