package shard

import (
	"strconv"
	"sync"

	"github.com/buraksezer/consistent"
	"github.com/spaolacci/murmur3"
)

type hasher struct {
}

func NewHasher() *hasher {
	return &hasher{}
}

func (h hasher) Sum64(data []byte) uint64 {
	return murmur3.Sum64(data)
}

type RingConfig struct {
	PartitionCount int
}

type Member string

func (m Member) String() string {
	return string(m)
}

// Ring maps conversation keys to partitions and partitions to members.
type Ring struct {
	RingConfig
	hring *consistent.Consistent
	mu    sync.RWMutex
}

func NewRing(c RingConfig, members ...string) *Ring {
	cfg := consistent.Config{
		PartitionCount:    c.PartitionCount,
		ReplicationFactor: 20,
		Load:              1.25,
		Hasher:            NewHasher(),
	}
	// a non-nil empty member list makes consistent distribute partitions
	// over nobody
	var ms []consistent.Member
	for _, m := range members {
		ms = append(ms, Member(m))
	}
	return &Ring{
		RingConfig: c,
		hring:      consistent.New(ms, cfg),
	}
}

func (r *Ring) Join(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hring.Add(Member(name))
}

func (r *Ring) Leave(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hring.Remove(name)
}

func (r *Ring) GetPartition(key string) int {
	return r.hring.FindPartitionID([]byte(key))
}

// GetOwner returns the member owning the partition of key.
func (r *Ring) GetOwner(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner := r.hring.GetPartitionOwner(r.GetPartition(key))
	if owner == nil {
		return ""
	}
	return owner.String()
}

// GetPartitions lists the partitions owned by member in ascending order.
func (r *Ring) GetPartitions(member string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	partitions := make([]int, 0)
	for i := 0; i < r.PartitionCount; i++ {
		owner := r.hring.GetPartitionOwner(i)
		if owner != nil && owner.String() == member {
			partitions = append(partitions, i)
		}
	}
	return partitions
}

func WorkerName(i int) string {
	return "worker-" + strconv.Itoa(i)
}
