package service

import (
	"math/rand/v2"
	"sync"

	"github.com/AdamBeresnev/club-brackets/internal/metrics"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type options struct {
	clock        clockwork.Clock
	metrics      metrics.Metrics
	resetCascade bool
	shuffle      func([]string)
}

type Option func(*options)

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

func WithMetrics(m metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithResetCascade makes ResetMatch clear the downstream slots the match filled.
func WithResetCascade(enabled bool) Option {
	return func(o *options) { o.resetCascade = enabled }
}

// WithShuffle replaces the random participant order used by random bracketing.
func WithShuffle(shuffle func([]string)) Option {
	return func(o *options) { o.shuffle = shuffle }
}

func newOptions(opts []Option) options {
	o := options{
		clock:   clockwork.NewRealClock(),
		metrics: metrics.Nop{},
		shuffle: shuffleIDs,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func shuffleIDs(ids []string) {
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// TournamentLocks serializes bracket mutations per tournament. Services that change
// matches of the same tournament must share one instance.
type TournamentLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*tournamentLock
}

type tournamentLock struct {
	sync.Mutex
	refs int
}

func NewTournamentLocks() *TournamentLocks {
	return &TournamentLocks{locks: make(map[uuid.UUID]*tournamentLock)}
}

// Lock blocks until the tournament is free and returns the matching unlock.
func (l *TournamentLocks) Lock(tournamentID uuid.UUID) func() {
	l.mu.Lock()
	lock, ok := l.locks[tournamentID]
	if !ok {
		lock = &tournamentLock{}
		l.locks[tournamentID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, tournamentID)
		}
		l.mu.Unlock()
	}
}
