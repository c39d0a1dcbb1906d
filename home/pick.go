package home

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"

	"github.com/leeineian/tempo/media"
)

const pickPrefix = "music:pick:"

var (
	errPickGone     = errors.New("pick expired")
	errPickNotYours = errors.New("pick belongs to another user")
)

// pendingPick holds search candidates until the requester selects one or
// the timer runs out.
type pendingPick struct {
	guildID snowflake.ID
	userID  snowflake.ID
	tracks  []media.Track
	timer   *time.Timer
}

type pickStore struct {
	mu    sync.Mutex
	picks map[string]*pendingPick
}

var picks = newPickStore()

func newPickStore() *pickStore {
	return &pickStore{picks: make(map[string]*pendingPick)}
}

// add stores p and returns its component ID. onExpire runs if nobody claims
// it within ttl.
func (s *pickStore) add(p *pendingPick, ttl time.Duration, onExpire func()) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.picks[id] = p
	p.timer = time.AfterFunc(ttl, func() {
		if s.remove(id) != nil {
			onExpire()
		}
	})
	return pickPrefix + id
}

// claim removes and returns the pick if it belongs to userID.
func (s *pickStore) claim(customID string, userID snowflake.ID) (*pendingPick, error) {
	id := strings.TrimPrefix(customID, pickPrefix)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.picks[id]
	if !ok {
		return nil, errPickGone
	}
	if p.userID != userID {
		return nil, errPickNotYours
	}
	delete(s.picks, id)
	p.timer.Stop()
	return p, nil
}

func (s *pickStore) remove(id string) *pendingPick {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.picks[id]
	if !ok {
		return nil
	}
	delete(s.picks, id)
	return p
}

func (s *pickStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.picks)
}
