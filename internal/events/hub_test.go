package events

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediashelf/internal/library"
	"mediashelf/internal/metrics"
)

func newHub() *Hub {
	return NewHub(metrics.NewMetrics(prometheus.NewRegistry()))
}

func decode(t *testing.T, raw []byte) Event {
	t.Helper()
	var e Event
	require.NoError(t, json.Unmarshal(raw, &e))
	return e
}

func TestBroadcast_DeliversToEveryClient(t *testing.T) {
	h := newHub()
	a := h.Register("a")
	b := h.Register("b")
	assert.Equal(t, 2, h.Clients())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.WebsocketClients))

	h.Broadcast(Event{Type: TypeProfileUpdated, UserID: "a"})

	for _, c := range []*Client{a, b} {
		e := decode(t, <-c.Messages())
		assert.Equal(t, TypeProfileUpdated, e.Type)
		assert.Equal(t, "a", e.UserID)
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestBroadcast_SlowClientDropsInsteadOfBlocking(t *testing.T) {
	h := newHub()
	h.buffer = 2
	slow := h.Register("slow")

	for i := 0; i < 5; i++ {
		h.Broadcast(Event{Type: TypeLibraryUpdated, MediaID: int64(i + 1)})
	}
	assert.Equal(t, 3, slow.Dropped())
	assert.Equal(t, int64(1), decode(t, <-slow.Messages()).MediaID)
	assert.Equal(t, int64(2), decode(t, <-slow.Messages()).MediaID)
}

func TestUnregister_Idempotent(t *testing.T) {
	h := newHub()
	c := h.Register("x")
	h.Unregister(c)
	h.Unregister(c)
	assert.Equal(t, 0, h.Clients())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.WebsocketClients))

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed")
	}

	// unregistered clients no longer receive
	h.Broadcast(Event{Type: TypeLibraryUpdated})
	assert.Len(t, c.Messages(), 0)
}

func TestListener_MapsStoreChanges(t *testing.T) {
	h := newHub()
	c := h.Register("")
	listener := h.Listener()

	listener(library.Change{Kind: library.ChangeLibrary, MediaID: 4})
	listener(library.Change{Kind: library.ChangeCommentAdded, MediaID: 4, CommentID: "c1"})
	listener(library.Change{Kind: library.ChangeCommentDeleted, MediaID: 4, CommentID: "c1"})

	assert.Equal(t, TypeLibraryUpdated, decode(t, <-c.Messages()).Type)
	added := decode(t, <-c.Messages())
	assert.Equal(t, TypeCommentAdded, added.Type)
	assert.Equal(t, int64(4), added.MediaID)
	assert.Equal(t, "c1", added.CommentID)
	assert.Equal(t, TypeCommentDeleted, decode(t, <-c.Messages()).Type)
}

func TestRequireUpgrade(t *testing.T) {
	app := fiber.New()
	app.Get("/ws", RequireUpgrade, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
