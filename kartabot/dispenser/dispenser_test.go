package dispenser

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/makspace/kartabot/kartabot/catalog"
)

type historyEntry struct {
	cardID  string
	shownAt int64
}

type fakeStore struct {
	mu        sync.Mutex
	last      map[int64]int64
	history   map[int64][]historyEntry
	recordErr error

	recordedCards []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		last:    make(map[int64]int64),
		history: make(map[int64][]historyEntry),
	}
}

func (s *fakeStore) LastDrawTime(_ context.Context, telegramID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.last[telegramID]
	return last, ok, nil
}

func (s *fakeStore) HistorySince(_ context.Context, telegramID int64, since int64) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for _, entry := range s.history[telegramID] {
		if entry.shownAt > since {
			seen[entry.cardID] = struct{}{}
		}
	}
	return seen, nil
}

func (s *fakeStore) RecordDraw(_ context.Context, telegramID int64, cardID string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.last[telegramID] = now
	s.history[telegramID] = append(s.history[telegramID], historyEntry{cardID: cardID, shownAt: now})
	s.recordedCards = append(s.recordedCards, cardID)
	return nil
}

func testCatalog(t *testing.T, ids ...string) *catalog.Catalog {
	t.Helper()
	cards := make([]catalog.Card, 0, len(ids))
	for _, id := range ids {
		cards = append(cards, catalog.Card{
			ID:    id,
			Title: "Card " + id,
			Text:  "Text for " + id,
			Image: id + ".jpg",
		})
	}
	cat, err := catalog.New(cards)
	if err != nil {
		t.Fatalf("failed to build test catalog: %v", err)
	}
	return cat
}

func newTestDispenser(t *testing.T, store Store, cat *catalog.Catalog) *Dispenser {
	t.Helper()
	d, err := New(store, cat)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func TestDispenser_RequestDraw_FirstDraw(t *testing.T) {
	store := newFakeStore()
	cat := testCatalog(t, "c1", "c2", "c3")
	d := newTestDispenser(t, store, cat)

	result, err := d.RequestDraw(context.Background(), 123, 1000)
	if err != nil {
		t.Fatalf("RequestDraw() error = %v", err)
	}
	if result.OnCooldown {
		t.Fatalf("RequestDraw() reported cooldown for a user who never drew")
	}
	if _, ok := cat.ByID(result.Card.ID); !ok {
		t.Errorf("RequestDraw() returned card %q not in catalog", result.Card.ID)
	}
	if got := store.recordedCards; !reflect.DeepEqual(got, []string{result.Card.ID}) {
		t.Errorf("recorded cards = %v, want %v", got, []string{result.Card.ID})
	}
	if store.last[123] != 1000 {
		t.Errorf("cooldown timestamp = %d, want 1000", store.last[123])
	}
}

func TestDispenser_RequestDraw_Cooldown(t *testing.T) {
	const drawTime = int64(1_000_000)

	tests := []struct {
		name      string
		elapsed   int64
		wantDraw  bool
		wantHours int64
	}{
		{name: "just drawn", elapsed: 1, wantHours: 24},
		{name: "half way", elapsed: 43200, wantHours: 12},
		{name: "final hour boundary", elapsed: 82800, wantHours: 1},
		{name: "one second left", elapsed: 86399, wantHours: 1},
		{name: "cooldown exactly elapsed", elapsed: 86400, wantDraw: true},
		{name: "cooldown long over", elapsed: 90000, wantDraw: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.last[123] = drawTime
			d := newTestDispenser(t, store, testCatalog(t, "c1", "c2"))

			result, err := d.RequestDraw(context.Background(), 123, drawTime+tt.elapsed)
			if err != nil {
				t.Fatalf("RequestDraw() error = %v", err)
			}
			if result.OnCooldown == tt.wantDraw {
				t.Fatalf("RequestDraw() OnCooldown = %v, wantDraw %v", result.OnCooldown, tt.wantDraw)
			}
			if !tt.wantDraw && result.HoursLeft != tt.wantHours {
				t.Errorf("RequestDraw() HoursLeft = %d, want %d", result.HoursLeft, tt.wantHours)
			}
			if result.OnCooldown && result.HoursLeft == 0 {
				t.Errorf("RequestDraw() reported an active cooldown with 0 hours left")
			}
		})
	}
}

func TestDispenser_RequestDraw_ExcludesRecentCards(t *testing.T) {
	const now = int64(100 * 86400)

	store := newFakeStore()
	store.history[123] = []historyEntry{
		{cardID: "c1", shownAt: now - 86400},    // yesterday
		{cardID: "c2", shownAt: now - 29*86400}, // inside the window
		{cardID: "c3", shownAt: now - 31*86400}, // outside, eligible again
	}
	d := newTestDispenser(t, store, testCatalog(t, "c1", "c2", "c3"))

	for i := 0; i < 20; i++ {
		d.randIntn = func(n int) int { return i % n }
		result, err := d.RequestDraw(context.Background(), 123, now)
		if err != nil {
			t.Fatalf("RequestDraw() error = %v", err)
		}
		if result.Card.ID != "c3" {
			t.Fatalf("RequestDraw() returned recently shown card %q, want c3", result.Card.ID)
		}
		// Reset the cooldown so the next iteration draws again.
		delete(store.last, 123)
		store.history[123] = store.history[123][:3]
	}
}

func TestDispenser_RequestDraw_FallbackWhenAllSeen(t *testing.T) {
	const now = int64(100 * 86400)

	store := newFakeStore()
	store.history[123] = []historyEntry{
		{cardID: "c1", shownAt: now - 86400},
		{cardID: "c2", shownAt: now - 2*86400},
	}
	d := newTestDispenser(t, store, testCatalog(t, "c1", "c2"))

	result, err := d.RequestDraw(context.Background(), 123, now)
	if err != nil {
		t.Fatalf("RequestDraw() error = %v", err)
	}
	if result.OnCooldown {
		t.Fatalf("RequestDraw() reported cooldown, want a fallback draw")
	}
	if result.Card.ID != "c1" && result.Card.ID != "c2" {
		t.Errorf("RequestDraw() returned %q, want a card from the full catalog", result.Card.ID)
	}
}

func TestDispenser_RequestDraw_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.recordErr = errors.New("connection reset")
	d := newTestDispenser(t, store, testCatalog(t, "c1"))

	if _, err := d.RequestDraw(context.Background(), 123, 1000); err == nil {
		t.Fatalf("RequestDraw() error = nil, want persistence failure")
	}

	// The failed draw must not leave a cached card behind.
	if _, err := d.FullDescription(123); !errors.Is(err, ErrNoActiveCard) {
		t.Errorf("FullDescription() error = %v, want ErrNoActiveCard", err)
	}

	// The user can retry once the store recovers.
	store.recordErr = nil
	result, err := d.RequestDraw(context.Background(), 123, 1001)
	if err != nil {
		t.Fatalf("RequestDraw() retry error = %v", err)
	}
	if result.OnCooldown {
		t.Errorf("RequestDraw() retry reported cooldown after a failed draw")
	}
}

func TestDispenser_ConcurrentDrawsSerialized(t *testing.T) {
	store := newFakeStore()
	d := newTestDispenser(t, store, testCatalog(t, "c1", "c2", "c3"))

	const goroutines = 8
	var wg sync.WaitGroup
	results := make([]*Result, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := d.RequestDraw(context.Background(), 123, 1000)
			if err != nil {
				t.Errorf("RequestDraw() error = %v", err)
				return
			}
			results[i] = result
		}(i)
	}
	wg.Wait()

	// Exactly one goroutine wins the draw; everyone else hits the cooldown.
	draws := 0
	for _, result := range results {
		if result != nil && !result.OnCooldown {
			draws++
		}
	}
	if draws != 1 {
		t.Errorf("%d concurrent draws succeeded, want exactly 1", draws)
	}
	if len(store.recordedCards) != 1 {
		t.Errorf("%d draws recorded, want exactly 1", len(store.recordedCards))
	}
}

func TestDispenser_FullDescription(t *testing.T) {
	store := newFakeStore()
	d := newTestDispenser(t, store, testCatalog(t, "c1"))

	if _, err := d.FullDescription(123); !errors.Is(err, ErrNoActiveCard) {
		t.Fatalf("FullDescription() before draw error = %v, want ErrNoActiveCard", err)
	}

	result, err := d.RequestDraw(context.Background(), 123, 1000)
	if err != nil {
		t.Fatalf("RequestDraw() error = %v", err)
	}

	card, err := d.FullDescription(123)
	if err != nil {
		t.Fatalf("FullDescription() after draw error = %v", err)
	}
	if !reflect.DeepEqual(card, result.Card) {
		t.Errorf("FullDescription() = %+v, want %+v", card, result.Card)
	}

	// Another user still has no active card.
	if _, err := d.FullDescription(456); !errors.Is(err, ErrNoActiveCard) {
		t.Errorf("FullDescription() for other user error = %v, want ErrNoActiveCard", err)
	}
}
