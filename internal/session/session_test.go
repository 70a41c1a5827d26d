// ABOUTME: Tests for the session registry
// ABOUTME: Covers lazy creation, entry agent default, and concurrent access

package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_CreatesWithEntryAgent(t *testing.T) {
	store := NewStore("frontdesk_agent")

	sess := store.Get("sess-1")
	require.NotNil(t, sess)
	assert.Equal(t, "sess-1", sess.ID)
	assert.Equal(t, "frontdesk_agent", sess.CurrentAgent())
	assert.Equal(t, 1, store.Len())
}

func TestGet_ReturnsSameSession(t *testing.T) {
	store := NewStore("frontdesk_agent")

	first := store.Get("sess-1")
	first.SetCurrentAgent("scheduling_agent")

	second := store.Get("sess-1")
	assert.Same(t, first, second)
	assert.Equal(t, "scheduling_agent", second.CurrentAgent())
	assert.Equal(t, 1, store.Len())
}

func TestLookup_DoesNotCreate(t *testing.T) {
	store := NewStore("frontdesk_agent")

	_, ok := store.Lookup("sess-1")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())

	store.Get("sess-1")
	sess, ok := store.Lookup("sess-1")
	assert.True(t, ok)
	assert.Equal(t, "sess-1", sess.ID)
}

func TestGet_ConcurrentCreation(t *testing.T) {
	store := NewStore("frontdesk_agent")

	var wg sync.WaitGroup
	sessions := make([]*Session, 16)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = store.Get("sess-shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(sessions); i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
	assert.Equal(t, 1, store.Len())
}

func TestSessionLock_SerializesOwnerUpdates(t *testing.T) {
	store := NewStore("frontdesk_agent")
	sess := store.Get("sess-1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess.Lock()
			defer sess.Unlock()
			sess.SetCurrentAgent(fmt.Sprintf("agent-%d", i))
			assert.Equal(t, fmt.Sprintf("agent-%d", i), sess.CurrentAgent())
		}(i)
	}
	wg.Wait()
}
