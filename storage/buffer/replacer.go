package buffer

import (
	"sync"

	"go.uber.org/zap"

	"github.com/arnavsood/pagevault/storage/dbstore"
)

// lruKNode tracks one frame's access history and evictability, as
// described by spec.md §4.3: a sequence of timestamps with the most
// recent first, and an evictable flag.
type lruKNode struct {
	history   []int64 // most-recent-first
	evictable bool
}

// LRUKReplacer selects a victim frame by backward k-distance: current
// timestamp minus the timestamp of the k-th most recent access, with
// frames that have fewer than k accesses treated as +Inf (and therefore
// preferred for eviction), ties broken by the oldest recorded access.
// All operations are O(n) in the number of tracked frames, which
// spec.md §4.3 calls acceptable at teaching scale.
type LRUKReplacer struct {
	mu sync.Mutex

	k       int
	nodes   map[dbstore.FrameID]*lruKNode
	counter int64 // monotonically increasing logical clock
	size    int   // number of evictable frames

	log *zap.Logger
}

// NewLRUKReplacer constructs a replacer with the given k. numFrames is a
// capacity hint only; the map grows as frames are first recorded.
func NewLRUKReplacer(numFrames, k int, log *zap.Logger) *LRUKReplacer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LRUKReplacer{
		k:     k,
		nodes: make(map[dbstore.FrameID]*lruKNode, numFrames),
		log:   log.With(zap.String("component", "buffer.LRUKReplacer")),
	}
}

// RecordAccess pushes the current timestamp onto the front of frame's
// (most-recent-first) history, creating its node if this is the first
// access.
func (r *LRUKReplacer) RecordAccess(frame dbstore.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counter++
	n, ok := r.nodes[frame]
	if !ok {
		n = &lruKNode{}
		r.nodes[frame] = n
	}
	n.history = append([]int64{r.counter}, n.history...)
}

// SetEvictable toggles whether frame may be chosen by Evict, adjusting
// Size() accordingly. It is a programming fault to call this for a
// frame that has never been recorded, and it aborts rather than
// returning an error (spec.md §7).
func (r *LRUKReplacer) SetEvictable(frame dbstore.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frame]
	if !ok {
		r.log.Fatal("SetEvictable on unknown frame", zap.Int32("frame_id", int32(frame)))
		return
	}
	if n.evictable == evictable {
		return
	}
	n.evictable = evictable
	if evictable {
		r.size++
	} else {
		r.size--
	}
}

// Remove erases frame's node. It is a no-op if the frame is unknown, and
// a programming fault (abort) if the frame is currently non-evictable
// (spec.md §4.3).
func (r *LRUKReplacer) Remove(frame dbstore.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frame]
	if !ok {
		return
	}
	if !n.evictable {
		r.log.Fatal("Remove on non-evictable frame", zap.Int32("frame_id", int32(frame)))
		return
	}
	delete(r.nodes, frame)
	r.size--
}

// Evict selects and removes the evictable frame with the largest
// backward k-distance, ties broken by the oldest recorded timestamp.
// It reports false if no frame is evictable.
func (r *LRUKReplacer) Evict() (dbstore.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		victim    dbstore.FrameID
		found     bool
		bestDist  int64 = -1
		bestOldTS int64
		infinite  bool
	)

	for frame, n := range r.nodes {
		if !n.evictable {
			continue
		}
		dist, isInf, oldest := kDistance(n, r.k, r.counter)
		better := false
		switch {
		case !found:
			better = true
		case isInf && !infinite:
			better = true
		case isInf == infinite && isInf:
			// both +Inf: break ties by oldest recorded timestamp
			better = oldest < bestOldTS
		case isInf == infinite && !isInf:
			if dist > bestDist {
				better = true
			} else if dist == bestDist {
				better = oldest < bestOldTS
			}
		case !isInf && infinite:
			better = false
		}
		if better {
			victim, found, bestDist, bestOldTS, infinite = frame, true, dist, oldest, isInf
		}
	}

	if !found {
		return dbstore.InvalidFrameID, false
	}
	delete(r.nodes, victim)
	r.size--
	r.log.Debug("evicted frame", zap.Int32("frame_id", int32(victim)))
	return victim, true
}

// kDistance computes (current - timestamp of k-th most recent access),
// reporting isInf=true when the frame has fewer than k recorded
// accesses. oldest is always the smallest (earliest) timestamp in the
// frame's history, used for tie-breaking.
func kDistance(n *lruKNode, k int, current int64) (dist int64, isInf bool, oldest int64) {
	oldest = n.history[len(n.history)-1]
	if len(n.history) < k {
		return 0, true, oldest
	}
	kth := n.history[k-1]
	return current - kth, false, oldest
}

// Size returns the number of frames currently marked evictable.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
