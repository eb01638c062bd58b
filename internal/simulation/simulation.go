// Package simulation drives a broker with bots and random users so its
// behaviour under concurrent room and membership churn can be watched.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/chatcore/internal/core"
)

// Broker is the subset of core.Broker the simulation calls.
type Broker interface {
	CreateRoom(name string) error
	RemoveRoom(name string) error
	JoinRoom(room, user string) error
	LeaveRoom(room, user string) error
	SendMessage(room string, msg core.Message) error
}

// Options tunes a simulation run.
type Options struct {
	Duration       time.Duration
	Tick           time.Duration
	Seed           int64
	CreateAttempts int
}

// Stats summarises a run.
type Stats struct {
	RoomsCreated int64
	RoomsRemoved int64
	Joins        int64
	Leaves       int64
	MessagesSent int64
	Errors       int64
}

type counters struct {
	roomsCreated atomic.Int64
	roomsRemoved atomic.Int64
	joins        atomic.Int64
	leaves       atomic.Int64
	messagesSent atomic.Int64
	errors       atomic.Int64
}

var replies = []string{
	"Hello!",
	"Yes, what's up?",
	"I heard you calling me.",
	"Sure, I'm here.",
	"I'm responding to the bot.",
	"Random user is present. :-)",
}

// Simulation runs three concurrent managers against a broker: one creating
// and removing rooms, one moving users in and out, and one letting room bots
// call on users who answer back.
type Simulation struct {
	broker Broker
	opts   Options
	log    *zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	// mu guards the driver's own bookkeeping and is held across the broker
	// calls that must agree with it.
	mu    sync.Mutex
	rooms []string
	users map[string][]string // non-bot users per room

	roomName func() string
	userName func() string

	stats counters
}

// New prepares a simulation. A zero Seed picks a time-based seed.
func New(broker Broker, opts Options, logger *zerolog.Logger) *Simulation {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.CreateAttempts < 1 {
		opts.CreateAttempts = 1
	}
	seed := uint64(opts.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	l := logger.With().Str("component", "simulation").Logger()
	s := &Simulation{
		broker: broker,
		opts:   opts,
		log:    &l,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		users:  make(map[string][]string),
	}
	s.roomName = func() string { return fmt.Sprintf("room-%d", s.between(1000, 9999)) }
	s.userName = func() string { return fmt.Sprintf("user-%d", s.between(1000, 9999)) }
	return s
}

// Run drives the broker until opts.Duration elapses or ctx is cancelled.
func (s *Simulation) Run(ctx context.Context) (Stats, error) {
	if s.opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Duration)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.every(ctx, s.manageRooms) })
	g.Go(func() error { return s.every(ctx, s.manageUsers) })
	g.Go(func() error { return s.every(ctx, s.botInteraction) })

	if err := g.Wait(); err != nil {
		return s.Stats(), err
	}

	stats := s.Stats()
	s.log.Info().
		Int64("rooms_created", stats.RoomsCreated).
		Int64("rooms_removed", stats.RoomsRemoved).
		Int64("joins", stats.Joins).
		Int64("leaves", stats.Leaves).
		Int64("messages", stats.MessagesSent).
		Int64("errors", stats.Errors).
		Msg("simulation finished")
	return stats, nil
}

// Stats returns the counters so far.
func (s *Simulation) Stats() Stats {
	return Stats{
		RoomsCreated: s.stats.roomsCreated.Load(),
		RoomsRemoved: s.stats.roomsRemoved.Load(),
		Joins:        s.stats.joins.Load(),
		Leaves:       s.stats.leaves.Load(),
		MessagesSent: s.stats.messagesSent.Load(),
		Errors:       s.stats.errors.Load(),
	}
}

func (s *Simulation) every(ctx context.Context, step func(context.Context)) error {
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	for {
		step(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Simulation) manageRooms(ctx context.Context) {
	if s.intn(5) < 4 {
		s.createRoom(ctx)
		return
	}
	s.removeRoom()
}

func (s *Simulation) manageUsers(context.Context) {
	if s.intn(4) < 3 {
		s.addUser()
		return
	}
	s.removeUser()
}

// createRoom opens a room with its bot, retrying with a fresh name when the
// chosen one is taken.
func (s *Simulation) createRoom(ctx context.Context) {
	for attempt := 1; attempt <= s.opts.CreateAttempts; attempt++ {
		room := s.roomName()
		bot := botName(room)

		s.mu.Lock()
		err := s.broker.CreateRoom(room)
		if err == nil {
			if joinErr := s.broker.JoinRoom(room, bot); joinErr != nil {
				s.fail(joinErr).Str("room", room).Str("user", bot).Msg("add bot")
			} else {
				s.stats.joins.Add(1)
			}
			s.rooms = append(s.rooms, room)
			s.users[room] = nil
		}
		s.mu.Unlock()

		if err == nil {
			s.stats.roomsCreated.Add(1)
			s.log.Info().Str("room", room).Str("bot", bot).Msg("created room")
			return
		}

		s.fail(err).Str("room", room).Int("attempt", attempt).Msg("create room")
		if !errors.Is(err, core.ErrRoomExists) {
			return
		}

		backoff := time.Duration(attempt) * s.opts.Tick / 10
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// removeRoom empties a random room, bot included, and removes it.
func (s *Simulation) removeRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rooms) == 0 {
		return
	}
	idx := s.intn(len(s.rooms))
	room := s.rooms[idx]

	for _, user := range s.users[room] {
		if err := s.broker.LeaveRoom(room, user); err != nil {
			s.fail(err).Str("room", room).Str("user", user).Msg("leave before removal")
			continue
		}
		s.stats.leaves.Add(1)
	}
	s.users[room] = nil
	if err := s.broker.LeaveRoom(room, botName(room)); err == nil {
		s.stats.leaves.Add(1)
	}

	if err := s.broker.RemoveRoom(room); err != nil {
		s.fail(err).Str("room", room).Msg("remove room")
		return
	}
	s.rooms = append(s.rooms[:idx], s.rooms[idx+1:]...)
	delete(s.users, room)
	s.stats.roomsRemoved.Add(1)
	s.log.Info().Str("room", room).Msg("removed room")
}

func (s *Simulation) addUser() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rooms) == 0 {
		return
	}
	room := s.rooms[s.intn(len(s.rooms))]
	user := s.userName()

	if err := s.broker.JoinRoom(room, user); err != nil {
		s.fail(err).Str("room", room).Str("user", user).Msg("add user")
		return
	}
	if !slices.Contains(s.users[room], user) {
		s.users[room] = append(s.users[room], user)
	}
	s.stats.joins.Add(1)
	s.log.Info().Str("room", room).Str("user", user).Msg("user joined")
}

func (s *Simulation) removeUser() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rooms) == 0 {
		return
	}
	room := s.rooms[s.intn(len(s.rooms))]
	list := s.users[room]
	if len(list) == 0 {
		return
	}
	idx := s.intn(len(list))
	user := list[idx]

	if err := s.broker.LeaveRoom(room, user); err != nil {
		s.fail(err).Str("room", room).Str("user", user).Msg("remove user")
		return
	}
	s.users[room] = append(list[:idx], list[idx+1:]...)
	s.stats.leaves.Add(1)
	s.log.Info().Str("room", room).Str("user", user).Msg("user left")
}

// botInteraction has a room bot call a random user, who replies.
func (s *Simulation) botInteraction(context.Context) {
	room, user, ok := s.pickOccupied()
	if !ok {
		return
	}
	bot := botName(room)

	if err := s.broker.SendMessage(room, core.NewMessage(room, bot, user)); err != nil {
		s.fail(err).Str("room", room).Str("from", bot).Msg("bot call")
		return
	}
	s.stats.messagesSent.Add(1)

	reply := replies[s.intn(len(replies))]
	if err := s.broker.SendMessage(room, core.NewMessage(room, user, reply)); err != nil {
		s.fail(err).Str("room", room).Str("from", user).Msg("user reply")
		return
	}
	s.stats.messagesSent.Add(1)
	s.log.Debug().Str("room", room).Str("user", user).Msg("bot called user")
}

func (s *Simulation) pickOccupied() (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]string, 0, len(s.rooms))
	for _, room := range s.rooms {
		if len(s.users[room]) > 0 {
			candidates = append(candidates, room)
		}
	}
	if len(candidates) == 0 {
		return "", "", false
	}
	room := candidates[s.intn(len(candidates))]
	list := s.users[room]
	return room, list[s.intn(len(list))], true
}

func (s *Simulation) fail(err error) *zerolog.Event {
	s.stats.errors.Add(1)
	return s.log.Warn().Err(err).Str("code", core.Code(err))
}

func (s *Simulation) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.IntN(n)
}

func (s *Simulation) between(lo, hi int) int {
	return lo + s.intn(hi-lo)
}

func botName(room string) string {
	return room + "-bot"
}
