package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
)

func dialHub(t *testing.T, hub *Hub, table string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(table, conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return msg
}

func TestHubDeliversEventsPerTable(t *testing.T) {
	hub := NewHub(HubConfig{})
	conn := dialHub(t, hub, "announcements")
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("announcements") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(NewChangeEvent("announcements", ChangeInsert, nil, map[string]string{"id": "a1"}))

	var ev ChangeEvent
	require.NoError(t, json.Unmarshal(readMessage(t, conn), &ev))
	assert.Equal(t, "announcements", ev.Table)
	assert.Equal(t, ChangeInsert, ev.Type)
}

func TestHubSeedsChapterSubscribersWithSnapshot(t *testing.T) {
	hub := NewHub(HubConfig{})
	feed := NewChapterFeed()
	feed.Replace([]models.Chapter{{ID: "c1", Title: "Intro", OrderIndex: 1}})
	hub.AttachChapterFeed(feed)

	conn := dialHub(t, hub, TableChapters)

	var snapshot SnapshotEvent
	require.NoError(t, json.Unmarshal(readMessage(t, conn), &snapshot))
	assert.Equal(t, ChangeSnapshot, snapshot.Type)

	var rows []models.Chapter
	require.NoError(t, json.Unmarshal(snapshot.Rows, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", rows[0].ID)

	// Subsequent events arrive after the snapshot and are merged into the
	// feed for the next subscriber.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(TableChapters) == 1
	}, time.Second, 10*time.Millisecond)
	hub.Publish(NewChangeEvent(TableChapters, ChangeInsert, nil, models.Chapter{ID: "c2", OrderIndex: 2}))

	var ev ChangeEvent
	require.NoError(t, json.Unmarshal(readMessage(t, conn), &ev))
	assert.Equal(t, ChangeInsert, ev.Type)
	assert.Equal(t, 2, feed.Len())
}

func TestHubSubscriberCountTracksRegistration(t *testing.T) {
	hub := NewHub(HubConfig{})
	conn := dialHub(t, hub, "availability_slots")

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("availability_slots") == 1
	}, time.Second, 10*time.Millisecond)

	_ = conn.Close()
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("availability_slots") == 0
	}, time.Second, 10*time.Millisecond)
}
