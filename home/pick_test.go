package home

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickStore_Claim(t *testing.T) {
	s := newPickStore()
	id := s.add(&pendingPick{guildID: 1, userID: 7}, time.Minute, func() {
		t.Error("claimed pick must not expire")
	})
	require.True(t, strings.HasPrefix(id, pickPrefix))

	_, err := s.claim(id, 8)
	assert.ErrorIs(t, err, errPickNotYours)
	assert.Equal(t, 1, s.len())

	p, err := s.claim(id, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.guildID)
	assert.Equal(t, 0, s.len())

	_, err = s.claim(id, 7)
	assert.ErrorIs(t, err, errPickGone)
}

func TestPickStore_Expire(t *testing.T) {
	s := newPickStore()
	expired := make(chan struct{})
	id := s.add(&pendingPick{userID: 7}, 10*time.Millisecond, func() { close(expired) })

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("pick did not expire")
	}
	_, err := s.claim(id, 7)
	assert.ErrorIs(t, err, errPickGone)
	assert.Equal(t, 0, s.len())
}
