package unlock

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
)

// numShards spreads requester locks so unrelated callers do not serialize.
const numShards = 64

// defaultTxTimeout bounds one unlock transaction.
const defaultTxTimeout = 10 * time.Second

// MemoryTx provides the transactional boundary over memory stores using
// sharded mutexes keyed by requester. Two calls for the same requester
// serialize; calls for different requesters usually run in parallel. Memory
// stores cannot roll back, so tests asserting rollback behavior drive the
// stores directly.
type MemoryTx struct {
	shards  [numShards]sync.Mutex
	stores  Stores
	timeout time.Duration
}

// NewMemoryTx wraps a fixed store bundle in a sharded-lock boundary.
func NewMemoryTx(stores Stores) *MemoryTx {
	return &MemoryTx{stores: stores}
}

func (t *MemoryTx) RunInTx(ctx context.Context, requester domain.Requester, fn func(s Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := shardFor(requester.Key())
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(t.stores)
}

func shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numShards)
}
