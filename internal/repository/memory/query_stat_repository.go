package memory

import (
	"sync"

	"secondbrain-be/internal/entity"
)

const DefaultQueryStatCapacity = 200

// QueryStatRepository keeps the most recent search stats. It is process-local
// and lost on restart.
type QueryStatRepository struct {
	mu       sync.Mutex
	stats    []entity.QueryStat
	next     int
	full     bool
	capacity int
}

func NewQueryStatRepository(capacity int) *QueryStatRepository {
	if capacity <= 0 {
		capacity = DefaultQueryStatCapacity
	}
	return &QueryStatRepository{
		stats:    make([]entity.QueryStat, capacity),
		capacity: capacity,
	}
}

func (r *QueryStatRepository) Record(stat entity.QueryStat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats[r.next] = stat
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns up to limit stats, newest first. limit <= 0 returns all.
func (r *QueryStatRepository) Recent(limit int) []entity.QueryStat {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = r.capacity
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]entity.QueryStat, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + r.capacity) % r.capacity
		out = append(out, r.stats[idx])
	}
	return out
}
