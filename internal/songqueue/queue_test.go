package songqueue

import (
	"testing"

	"github.com/nrks/karago/internal/library"
)

func testSongs(names ...string) []library.Song {
	songs := make([]library.Song, len(names))
	for i, n := range names {
		songs[i] = library.NewSong("/music/"+n+".mp3", n, "artist")
	}
	return songs
}

func newTestQueue(t *testing.T, names ...string) *Queue {
	t.Helper()
	q, err := New(nil, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, s := range testSongs(names...) {
		q.Enqueue(s)
	}
	return q
}

func namesOf(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Song.SongName
	}
	return out
}

func assertOrder(t *testing.T, q *Queue, want ...string) {
	t.Helper()
	got := namesOf(q.All())
	if len(got) != len(want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queue = %v, want %v", got, want)
		}
	}
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	q := newTestQueue(t)
	song := testSongs("A")[0]

	q.Enqueue(song)
	item, err := q.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if item.Song.SongID != song.SongID {
		t.Errorf("Dequeue() song = %q, want %q", item.Song.SongID, song.SongID)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestDequeueEmptyIsIdentity(t *testing.T) {
	q := newTestQueue(t)

	notified := 0
	q.Subscribe(func([]Item) { notified++ })

	if _, err := q.Dequeue(); err != ErrQueueEmpty {
		t.Errorf("Dequeue() error = %v, want ErrQueueEmpty", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	if notified != 0 {
		t.Errorf("subscriber fired %d times on empty dequeue, want 0", notified)
	}
}

func TestEnqueuePastCapacityIsSilentNoop(t *testing.T) {
	q := newTestQueue(t)
	for i := 0; i < MaxQueueLength; i++ {
		q.Enqueue(testSongs("s")[0])
	}
	if q.Len() != MaxQueueLength {
		t.Fatalf("Len() = %d, want %d", q.Len(), MaxQueueLength)
	}

	q.Enqueue(testSongs("overflow")[0])
	if q.Len() != MaxQueueLength {
		t.Errorf("Len() after overflow enqueue = %d, want %d", q.Len(), MaxQueueLength)
	}
}

func TestConfiguredCapacity(t *testing.T) {
	q, err := New(nil, 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if q.Cap() != 3 {
		t.Fatalf("Cap() = %d, want 3", q.Cap())
	}

	for _, s := range testSongs("A", "B", "C", "D") {
		q.Enqueue(s)
	}
	assertOrder(t, q, "A", "B", "C")

	fallback, err := New(nil, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if fallback.Cap() != MaxQueueLength {
		t.Fatalf("Cap() = %d, want the %d default", fallback.Cap(), MaxQueueLength)
	}
}

func TestRemoveAt(t *testing.T) {
	q := newTestQueue(t, "A", "B", "C", "D")
	q.RemoveAt(1)
	assertOrder(t, q, "A", "C", "D")

	q.RemoveAt(10)
	assertOrder(t, q, "A", "C", "D")
}

func TestMoveUp(t *testing.T) {
	q := newTestQueue(t, "A", "B", "C", "D")

	q.MoveUp(1)
	assertOrder(t, q, "B", "A", "C", "D")

	// Boundary: head and out-of-range are no-ops.
	q.MoveUp(0)
	assertOrder(t, q, "B", "A", "C", "D")
	q.MoveUp(4)
	assertOrder(t, q, "B", "A", "C", "D")

	q.MoveUp(3)
	assertOrder(t, q, "B", "A", "D", "C")
}

func TestMoveUpSingleItem(t *testing.T) {
	q := newTestQueue(t, "A")
	q.MoveUp(0)
	assertOrder(t, q, "A")
}

func TestSendToFront(t *testing.T) {
	q := newTestQueue(t, "A", "B", "C", "D")
	q.SendToFront(2)
	assertOrder(t, q, "C", "A", "B", "D")

	q.SendToFront(0)
	assertOrder(t, q, "C", "A", "B", "D")
}

func TestReorder(t *testing.T) {
	q := newTestQueue(t, "A", "B", "C", "D")

	q.Reorder(0, 2)
	assertOrder(t, q, "B", "C", "A", "D")

	// Cancelled drag keeps the ordering.
	q.Reorder(1, -1)
	assertOrder(t, q, "B", "C", "A", "D")

	q.Reorder(3, 0)
	assertOrder(t, q, "D", "B", "C", "A")
}

func TestShuffleIsPermutation(t *testing.T) {
	for _, size := range []int{0, 1, 2, 8, MaxQueueLength} {
		q, err := New(nil, 0)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		for i := 0; i < size; i++ {
			q.Enqueue(library.NewSong("/m/x.mp3", "x", ""))
		}

		before := map[string]int{}
		for _, it := range q.All() {
			before[it.QueueItemID]++
		}

		q.Shuffle()

		after := map[string]int{}
		for _, it := range q.All() {
			after[it.QueueItemID]++
		}

		if len(before) != len(after) {
			t.Fatalf("size %d: shuffle changed cardinality %d -> %d", size, len(before), len(after))
		}
		for id, n := range before {
			if after[id] != n {
				t.Errorf("size %d: shuffle lost item %s", size, id)
			}
		}
	}
}

func TestShuffleEmptyDoesNotNotify(t *testing.T) {
	q := newTestQueue(t)
	notified := 0
	q.Subscribe(func([]Item) { notified++ })
	q.Shuffle()
	if notified != 0 {
		t.Errorf("subscriber fired %d times on empty shuffle, want 0", notified)
	}
}

func TestReplaceAll(t *testing.T) {
	q := newTestQueue(t, "A", "B")
	replacement := newTestQueue(t, "X", "Y", "Z").All()

	q.ReplaceAll(replacement)
	assertOrder(t, q, "X", "Y", "Z")
}

func TestSameSongQueuedTwiceGetsDistinctSlots(t *testing.T) {
	q := newTestQueue(t)
	song := testSongs("A")[0]
	q.Enqueue(song)
	q.Enqueue(song)

	items := q.All()
	if len(items) != 2 {
		t.Fatalf("Len() = %d, want 2", len(items))
	}
	if items[0].QueueItemID == items[1].QueueItemID {
		t.Errorf("both slots share queueItemId %q", items[0].QueueItemID)
	}
}

func TestSubscribersReceiveFullSequence(t *testing.T) {
	q := newTestQueue(t)

	var last []string
	q.Subscribe(func(items []Item) { last = namesOf(items) })

	for _, s := range testSongs("A", "B", "C") {
		q.Enqueue(s)
	}
	if len(last) != 3 || last[2] != "C" {
		t.Errorf("last notification = %v, want [A B C]", last)
	}

	q.MoveUp(1)
	if last[0] != "B" || last[1] != "A" {
		t.Errorf("last notification = %v, want [B A C]", last)
	}
}

func TestTakeAt(t *testing.T) {
	q := newTestQueue(t, "A", "B", "C")
	item, err := q.TakeAt(1)
	if err != nil {
		t.Fatalf("TakeAt() error = %v", err)
	}
	if item.Song.SongName != "B" {
		t.Errorf("TakeAt(1) = %q, want B", item.Song.SongName)
	}
	assertOrder(t, q, "A", "C")
}
