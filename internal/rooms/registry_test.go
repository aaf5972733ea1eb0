package rooms

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomIDsDoNotCollide(t *testing.T) {
	assert.NotEqual(t, UserRoom("x"), ChatRoom("x"))
}

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("c1")

	require.True(t, r.Join("room", "c1"))
	require.True(t, r.Join("room", "c1"))

	assert.Equal(t, []string{"c1"}, r.MembersOf("room"))
	assert.Equal(t, []string{"room"}, r.RoomsOf("c1"))
}

func TestJoinUnregisteredConnection(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.Join("room", "ghost"))
	assert.Empty(t, r.MembersOf("room"))
	assert.Equal(t, 0, r.RoomCount())
}

func TestLeaveWhenAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Register("c1")

	r.Leave("room", "c1")
	r.Leave("room", "unknown")

	assert.Empty(t, r.MembersOf("room"))
}

func TestEmptyRoomIsDiscarded(t *testing.T) {
	r := NewRegistry()
	r.Register("c1")
	r.Join("room", "c1")
	require.Equal(t, 1, r.RoomCount())

	r.Leave("room", "c1")
	assert.Equal(t, 0, r.RoomCount())
	assert.Empty(t, r.MembersOf("room"))
}

func TestUnregisterRemovesFromEveryRoom(t *testing.T) {
	r := NewRegistry()
	r.Register("c1")
	r.Register("c2")
	r.Join(UserRoom("u1"), "c1")
	r.Join(ChatRoom("a"), "c1")
	r.Join(ChatRoom("b"), "c1")
	r.Join(ChatRoom("a"), "c2")

	left := r.Unregister("c1")

	assert.Equal(t, []string{ChatRoom("a"), ChatRoom("b"), UserRoom("u1")}, left)
	assert.Equal(t, []string{"c2"}, r.MembersOf(ChatRoom("a")))
	assert.Empty(t, r.MembersOf(ChatRoom("b")))
	assert.Empty(t, r.MembersOf(UserRoom("u1")))
	assert.False(t, r.IsRegistered("c1"))
	assert.False(t, r.Join(ChatRoom("a"), "c1"), "join after unregister must not resurrect membership")
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("c1")
	r.Join("room", "c1")

	r.Unregister("c1")
	assert.Nil(t, r.Unregister("c1"))
	assert.Nil(t, r.Unregister("never-registered"))
	assert.Equal(t, 0, r.ConnectionCount())
}

// TestMembershipMatchesSetModel replays random join/leave sequences and
// compares MembersOf with a plain set computed from the same operations.
func TestMembershipMatchesSetModel(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	conns := []string{"a", "b", "c", "d"}
	roomIDs := []string{"r1", "r2", "r3"}

	for iter := 0; iter < 50; iter++ {
		r := NewRegistry()
		model := map[string]map[string]bool{}
		for _, c := range conns {
			r.Register(c)
		}

		for step := 0; step < 40; step++ {
			room := roomIDs[rng.Intn(len(roomIDs))]
			conn := conns[rng.Intn(len(conns))]
			if model[room] == nil {
				model[room] = map[string]bool{}
			}
			if rng.Intn(2) == 0 {
				r.Join(room, conn)
				model[room][conn] = true
			} else {
				r.Leave(room, conn)
				delete(model[room], conn)
			}
		}

		for _, room := range roomIDs {
			want := []string{}
			for c := range model[room] {
				want = append(want, c)
			}
			sort.Strings(want)
			assert.Equal(t, want, r.MembersOf(room), "iteration %d room %s", iter, room)
		}
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := NewRegistry()
	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		id := fmt.Sprintf("c%02d", i)
		r.Register(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Join("shared", id)
				_ = r.MembersOf("shared")
				r.Leave("shared", id)
			}
			r.Join("shared", id)
		}()
	}
	wg.Wait()

	assert.Len(t, r.MembersOf("shared"), workers)
}
