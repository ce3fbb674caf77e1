package app

import (
	"sync"

	"livequiz-service/internal/domain"
)

// Hub fans session state and ranking updates out to subscribers, keyed by
// session. A new subscriber immediately receives the latest snapshot (when
// one exists); rapid successive publishes coalesce to the newest value for
// slow consumers. Subscriptions on different sessions are independent.
type Hub struct {
	mu    sync.RWMutex
	feeds map[string]*sessionFeed
}

type sessionFeed struct {
	mu sync.Mutex

	state     domain.SessionState
	haveState bool
	ranking   domain.Ranking
	haveRank  bool

	stateSubs map[chan domain.SessionState]struct{}
	rankSubs  map[chan domain.Ranking]struct{}
}

func NewHub() *Hub {
	return &Hub{feeds: make(map[string]*sessionFeed)}
}

func (h *Hub) feed(sessionID string) *sessionFeed {
	h.mu.Lock()
	defer h.mu.Unlock()
	feed, ok := h.feeds[sessionID]
	if !ok {
		feed = &sessionFeed{
			stateSubs: make(map[chan domain.SessionState]struct{}),
			rankSubs:  make(map[chan domain.Ranking]struct{}),
		}
		h.feeds[sessionID] = feed
	}
	return feed
}

// PublishState pushes a new session snapshot to all state subscribers.
// Publishes are ordered by revision: a write that raced a later transition
// and arrives after it is dropped, so neither the snapshot nor any
// subscriber ever observes the session move backwards.
func (h *Hub) PublishState(sessionID string, state domain.SessionState) {
	feed := h.feed(sessionID)
	feed.mu.Lock()
	defer feed.mu.Unlock()
	if feed.haveState && state.Revision <= feed.state.Revision {
		return
	}
	feed.state = state
	feed.haveState = true
	for ch := range feed.stateSubs {
		sendLatest(ch, state)
	}
}

// PublishRanking pushes a new leaderboard to all ranking subscribers.
// Rankings derived from an older session revision than the held one are
// dropped; equal revisions still flow, since the ledger grows between
// recomputes at the same session state.
func (h *Hub) PublishRanking(sessionID string, ranking domain.Ranking) {
	feed := h.feed(sessionID)
	feed.mu.Lock()
	defer feed.mu.Unlock()
	if feed.haveRank && ranking.Revision < feed.ranking.Revision {
		return
	}
	feed.ranking = ranking
	feed.haveRank = true
	for ch := range feed.rankSubs {
		sendLatest(ch, ranking)
	}
}

// SubscribeState attaches a state subscriber. The caller must invoke the
// returned cancel function to avoid leaks; cancelling never affects other
// subscribers.
func (h *Hub) SubscribeState(sessionID string) (<-chan domain.SessionState, func()) {
	feed := h.feed(sessionID)
	ch := make(chan domain.SessionState, 8)

	feed.mu.Lock()
	feed.stateSubs[ch] = struct{}{}
	if feed.haveState {
		ch <- feed.state
	}
	feed.mu.Unlock()

	cancel := func() {
		feed.mu.Lock()
		if _, ok := feed.stateSubs[ch]; ok {
			delete(feed.stateSubs, ch)
			close(ch)
		}
		feed.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeRanking attaches a ranking subscriber with the same snapshot and
// cancel semantics as SubscribeState.
func (h *Hub) SubscribeRanking(sessionID string) (<-chan domain.Ranking, func()) {
	feed := h.feed(sessionID)
	ch := make(chan domain.Ranking, 8)

	feed.mu.Lock()
	feed.rankSubs[ch] = struct{}{}
	if feed.haveRank {
		ch <- feed.ranking
	}
	feed.mu.Unlock()

	cancel := func() {
		feed.mu.Lock()
		if _, ok := feed.rankSubs[ch]; ok {
			delete(feed.rankSubs, ch)
			close(ch)
		}
		feed.mu.Unlock()
	}
	return ch, cancel
}

// SnapshotState returns the latest published state, if any.
func (h *Hub) SnapshotState(sessionID string) (domain.SessionState, bool) {
	feed := h.feed(sessionID)
	feed.mu.Lock()
	defer feed.mu.Unlock()
	return feed.state, feed.haveState
}

// SnapshotRanking returns the latest published ranking, if any.
func (h *Hub) SnapshotRanking(sessionID string) (domain.Ranking, bool) {
	feed := h.feed(sessionID)
	feed.mu.Lock()
	defer feed.mu.Unlock()
	return feed.ranking, feed.haveRank
}

// sendLatest delivers without blocking: when the subscriber's buffer is full
// the oldest pending value is dropped so the channel always holds the most
// recent updates. This is a state-sync feed, not an event log.
func sendLatest[T any](ch chan T, value T) {
	select {
	case ch <- value:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- value
	}
}
