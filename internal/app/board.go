package app

import (
	"sort"
	"sync"
	"time"

	"live-trivia-service/internal/domain"
)

// boardHub holds one live board per round, created lazily on first use.
type boardHub struct {
	mu     sync.RWMutex
	boards map[string]*board
}

func newBoardHub() *boardHub {
	return &boardHub{boards: make(map[string]*board)}
}

func (h *boardHub) get(roundID string) *board {
	h.mu.RLock()
	b, ok := h.boards[roundID]
	h.mu.RUnlock()
	if ok {
		return b
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.boards[roundID]; ok {
		return b
	}
	b = &board{subscribers: make(map[chan domain.Board]struct{})}
	h.boards[roundID] = b
	return b
}

func (h *boardHub) drop(roundID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.boards[roundID]; ok {
		b.closeAll()
		delete(h.boards, roundID)
	}
}

// board fans leaderboard snapshots out to live subscribers.
type board struct {
	mu          sync.Mutex
	subscribers map[chan domain.Board]struct{}
}

func (b *board) subscribe(initial domain.Board) (<-chan domain.Board, func()) {
	ch := make(chan domain.Board, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	ch <- initial

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *board) publish(snapshot domain.Board) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Slow subscribers keep only the freshest snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (b *board) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// snapshotBoard orders entries best-first: higher score wins, equal scores
// break toward the lower accumulated time, then user ID for determinism.
func snapshotBoard(roundID string, entries []domain.LeaderboardEntry, now time.Time) domain.Board {
	sorted := append([]domain.LeaderboardEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Outranks(sorted[j]) {
			return true
		}
		if sorted[j].Outranks(sorted[i]) {
			return false
		}
		return sorted[i].UserID < sorted[j].UserID
	})
	return domain.Board{RoundID: roundID, Entries: sorted, UpdatedAt: now}
}
