package presence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LastConnectionWins(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	r.SetOnline("alice", "conn-1")
	r.SetOnline("alice", "conn-2")

	connectionID, ok := r.Lookup("alice")
	req.True(ok)
	req.Equal("conn-2", connectionID)
}

func TestRegistry_StaleDisconnectDoesNotEvictNewerConnection(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	r.SetOnline("alice", "conn-1")
	r.SetOnline("alice", "conn-2")

	// The close event for conn-1 arrives after the reconnect.
	r.SetOffline("conn-1")

	connectionID, ok := r.Lookup("alice")
	req.True(ok)
	req.Equal("conn-2", connectionID)

	r.SetOffline("conn-2")
	_, ok = r.Lookup("alice")
	req.False(ok)
}

func TestRegistry_ViewingLifecycle(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	chat := uuid.New()
	other := uuid.New()

	r.SetOnline("bob", "conn-9")
	req.False(r.IsViewing("bob", chat))

	r.Subscribe("bob", chat)
	req.True(r.IsViewing("bob", chat))
	req.Equal([]string{"conn-9"}, r.ViewerConnections(chat))

	// Opening another conversation replaces the subscription.
	r.Subscribe("bob", other)
	req.False(r.IsViewing("bob", chat))
	req.True(r.IsViewing("bob", other))
	req.Empty(r.ViewerConnections(chat))

	r.Unsubscribe("bob", other)
	req.False(r.IsViewing("bob", other))
}

func TestRegistry_UnsubscribeGuardsAgainstStaleConversation(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	first := uuid.New()
	second := uuid.New()

	r.SetOnline("bob", "conn-1")
	r.Subscribe("bob", first)
	r.Subscribe("bob", second)

	// Late leave event for the first conversation must not clear the second.
	r.Unsubscribe("bob", first)
	req.True(r.IsViewing("bob", second))
}

func TestRegistry_OfflineUserStopsViewing(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	chat := uuid.New()

	r.SetOnline("carol", "conn-3")
	r.Subscribe("carol", chat)
	r.SetOffline("conn-3")

	req.False(r.IsViewing("carol", chat))
	req.Empty(r.ViewerConnections(chat))
}
