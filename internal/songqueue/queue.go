// Package songqueue is the ordered play queue. Position 0 plays next. Every
// mutation persists the whole sequence and hands subscribers the full new
// ordering, not a diff.
package songqueue

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/nrks/karago/internal/library"
	"github.com/nrks/karago/internal/store"
)

// MaxQueueLength is the default cap. Exceeding the cap is a user-visible
// warning at the call site, not an error here: Enqueue past it is a silent
// no-op.
const MaxQueueLength = 30

var ErrQueueEmpty = errors.New("queue is empty")

// Item wraps a song snapshot with a slot-unique id. The same song can be
// queued twice; the two slots get distinct ids.
type Item struct {
	Song        library.Song `json:"song"`
	QueueItemID string       `json:"queueItemId"`
}

type Queue struct {
	store  *store.Store
	maxLen int

	mu     sync.Mutex
	items  []Item
	subs   []subscriber
	nextID int
}

type subscriber struct {
	id       int
	onChange func(items []Item)
}

// New restores the persisted queue. A maxLen of zero or less falls back to
// MaxQueueLength.
func New(st *store.Store, maxLen int) (*Queue, error) {
	if maxLen <= 0 {
		maxLen = MaxQueueLength
	}
	q := &Queue{store: st, maxLen: maxLen}

	if st != nil {
		var items []Item
		if _, err := st.Get(store.KeyQueueItems, &items); err != nil {
			return nil, fmt.Errorf("loading queue: %w", err)
		}
		q.items = items
	}

	return q, nil
}

// Cap reports the configured capacity.
func (q *Queue) Cap() int { return q.maxLen }

// Subscribe registers onChange; it fires with the full new sequence after
// every mutation. Returns an unsubscribe func.
func (q *Queue) Subscribe(onChange func(items []Item)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	id := q.nextID
	q.subs = append(q.subs, subscriber{id: id, onChange: onChange})

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		for i, s := range q.subs {
			if s.id == id {
				q.subs = append(q.subs[:i], q.subs[i+1:]...)
				return
			}
		}
	}
}

// Enqueue appends a new item. Silent no-op at capacity; callers pre-check
// with Len and surface the warning themselves.
func (q *Queue) Enqueue(song library.Song) {
	q.mu.Lock()
	if len(q.items) >= q.maxLen {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, Item{Song: song, QueueItemID: uuid.NewString()})
	q.commitLocked()
}

// Dequeue removes and returns the head item. ErrQueueEmpty on an empty
// queue, with no mutation and no notification.
func (q *Queue) Dequeue() (Item, error) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return Item{}, ErrQueueEmpty
	}
	head := q.items[0]
	q.items = append([]Item(nil), q.items[1:]...)
	q.commitLocked()
	return head, nil
}

// TakeAt removes and returns the item at index, for play-now semantics.
func (q *Queue) TakeAt(index int) (Item, error) {
	q.mu.Lock()
	if index < 0 || index >= len(q.items) {
		q.mu.Unlock()
		return Item{}, ErrQueueEmpty
	}
	item := q.items[index]
	q.items = append(q.items[:index:index], q.items[index+1:]...)
	q.commitLocked()
	return item, nil
}

// RemoveAt removes exactly one item. No-op if index is out of range.
func (q *Queue) RemoveAt(index int) {
	q.mu.Lock()
	if index < 0 || index >= len(q.items) {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items[:index:index], q.items[index+1:]...)
	q.commitLocked()
}

// MoveUp swaps the item at index with the one before it. No-op at the head
// or when fewer than two items are queued.
func (q *Queue) MoveUp(index int) {
	q.mu.Lock()
	if len(q.items) < 2 || index <= 0 || index >= len(q.items) {
		q.mu.Unlock()
		return
	}
	q.items[index-1], q.items[index] = q.items[index], q.items[index-1]
	q.commitLocked()
}

// SendToFront moves the item at index to position 0, shifting the earlier
// items down by one.
func (q *Queue) SendToFront(index int) {
	q.mu.Lock()
	if len(q.items) < 2 || index <= 0 || index >= len(q.items) {
		q.mu.Unlock()
		return
	}
	item := q.items[index]
	rest := append(q.items[:index:index], q.items[index+1:]...)
	q.items = append([]Item{item}, rest...)
	q.commitLocked()
}

// Reorder implements drag-reorder: remove from sourceIndex, insert at
// destIndex. A negative destIndex means the drag was cancelled; no-op.
func (q *Queue) Reorder(sourceIndex, destIndex int) {
	q.mu.Lock()
	if destIndex < 0 || sourceIndex < 0 || sourceIndex >= len(q.items) {
		q.mu.Unlock()
		return
	}
	if destIndex >= len(q.items) {
		destIndex = len(q.items) - 1
	}
	if sourceIndex == destIndex {
		q.mu.Unlock()
		return
	}

	item := q.items[sourceIndex]
	rest := append(q.items[:sourceIndex:sourceIndex], q.items[sourceIndex+1:]...)
	q.items = append(rest[:destIndex:destIndex], append([]Item{item}, rest[destIndex:]...)...)
	q.commitLocked()
}

// Shuffle applies a uniform Fisher-Yates permutation. No-op on an empty
// queue.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return
	}
	for i := len(q.items) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		q.items[i], q.items[j] = q.items[j], q.items[i]
	}
	q.commitLocked()
}

// ReplaceAll swaps in an externally computed ordering atomically.
func (q *Queue) ReplaceAll(items []Item) {
	q.mu.Lock()
	q.items = append([]Item(nil), items...)
	q.commitLocked()
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.commitLocked()
}

func (q *Queue) All() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// commitLocked persists and notifies with the new sequence, releasing the
// lock before running callbacks.
func (q *Queue) commitLocked() {
	items := make([]Item, len(q.items))
	copy(items, q.items)
	subs := make([]subscriber, len(q.subs))
	copy(subs, q.subs)
	q.mu.Unlock()

	if q.store != nil {
		if err := q.store.Set(store.KeyQueueItems, items); err != nil {
			log.Printf("queue persist error: %v", err)
		}
	}

	for _, s := range subs {
		s.onChange(items)
	}
}
