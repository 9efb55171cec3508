package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetMissingKey(t *testing.T) {
	s := openTestStore(t)

	var out []string
	ok, err := s.Get("nope", &out)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Errorf("Get() found = true, want false")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := map[string]int{"volume": 50, "pitch": 0}
	if err := s.Set(KeySettings, in); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	out := map[string]int{}
	ok, err := s.Get(KeySettings, &out)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatalf("Get() found = false, want true")
	}
	if out["volume"] != 50 || out["pitch"] != 0 {
		t.Errorf("Get() = %v, want %v", out, in)
	}
}

func TestSetReplacesWholeDocument(t *testing.T) {
	s := openTestStore(t)

	if err := s.Set(KeySongs, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(KeySongs, []string{"z"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var out []string
	if _, err := s.Get(KeySongs, &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(out) != 1 || out[0] != "z" {
		t.Errorf("Get() = %v, want [z]", out)
	}
}

func TestSubscribeReceivesFullValue(t *testing.T) {
	s := openTestStore(t)

	var got [][]string
	unsubscribe := s.Subscribe(KeyQueueItems, func(raw []byte) {
		var items []string
		if err := json.Unmarshal(raw, &items); err != nil {
			t.Fatalf("unmarshal notification: %v", err)
		}
		got = append(got, items)
	})

	if err := s.Set(KeyQueueItems, []string{"one"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(KeyQueueItems, []string{"one", "two"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("notifications = %d, want 2", len(got))
	}
	if len(got[1]) != 2 || got[1][1] != "two" {
		t.Errorf("second notification = %v, want [one two]", got[1])
	}

	unsubscribe()
	if err := s.Set(KeyQueueItems, []string{}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("notifications after unsubscribe = %d, want 2", len(got))
	}
}

func TestClosedStore(t *testing.T) {
	s := openTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Set("k", 1); err != ErrStoreClosed {
		t.Errorf("Set() error = %v, want ErrStoreClosed", err)
	}
}
