package engine

import (
	"fmt"
	"sync"

	"github.com/buraksezer/consistent"
	"github.com/spaolacci/murmur3"
)

type hasher struct{}

func (h hasher) Sum64(data []byte) uint64 {
	return murmur3.Sum64(data)
}

type lane string

func (l lane) String() string {
	return string(l)
}

// lanes serializes work per key. Keys are spread over a fixed set of mutexes
// through a consistent hash ring, so a key always lands on the same lane.
type lanes struct {
	ring  *consistent.Consistent
	locks map[string]*sync.Mutex
}

func newLanes(count int) *lanes {
	if count <= 0 {
		count = 1
	}
	members := make([]consistent.Member, 0, count)
	locks := make(map[string]*sync.Mutex, count)
	for i := 0; i < count; i++ {
		l := lane(fmt.Sprintf("lane-%d", i))
		members = append(members, l)
		locks[l.String()] = &sync.Mutex{}
	}
	partitions := 271
	if count*4 > partitions {
		partitions = count*4 + 1
	}
	cfg := consistent.Config{
		PartitionCount:    partitions,
		ReplicationFactor: 20,
		Load:              1.25,
		Hasher:            hasher{},
	}
	return &lanes{
		ring:  consistent.New(members, cfg),
		locks: locks,
	}
}

func (l *lanes) laneOf(key string) string {
	return l.ring.LocateKey([]byte(key)).String()
}

// lock takes the lane of key and returns its unlock. Callers never hold two
// lanes at once.
func (l *lanes) lock(key string) func() {
	m := l.locks[l.laneOf(key)]
	m.Lock()
	return m.Unlock
}
