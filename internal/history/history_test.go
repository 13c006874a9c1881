package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medisync/realtime/internal/delivery"
	"github.com/medisync/realtime/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"h1","senderId":"doctor1","receiverId":"p1","content":"hi","createdAt":"2026-01-01T10:00:00Z","readStatus":"read"},
			"garbage",
			{"id":"h2","senderId":"p1","receiverId":"doctor1","content":"hello","createdAt":1767261660000}
		]`))
	}))
	defer srv.Close()

	msgs, err := NewClient(srv.URL+"/", nil).Fetch(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "/api/messages/p1", gotPath)
	require.Len(t, msgs, 2)
	assert.Equal(t, delivery.Read, msgs[0].Status)
	assert.Equal(t, delivery.Delivered, msgs[1].Status)
}

func TestFetch_WrappedList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages":[{"id":"h1","senderId":"a","receiverId":"b","content":"x"}]}`))
	}))
	defer srv.Close()

	msgs, err := NewClient(srv.URL, nil).Fetch(context.Background(), "b")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "h1", msgs[0].ID)
}

func TestFetch_Errors(t *testing.T) {
	status := http.StatusInternalServerError
	body := ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, nil)

	_, err := c.Fetch(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)

	status, body = http.StatusOK, `{"error":"nope"}`
	_, err = c.Fetch(context.Background(), "p1")
	assert.Error(t, err)

	status, body = http.StatusOK, `not json`
	_, err = c.Fetch(context.Background(), "p1")
	assert.Error(t, err)
}

func at(minute int) time.Time {
	return time.Date(2026, 1, 1, 10, minute, 0, 0, time.UTC)
}

func TestMerge(t *testing.T) {
	hist := []domain.ChatMessage{
		{ID: "a", CreatedAt: at(1), Status: delivery.Read},
		{ID: "b", CreatedAt: at(3), Status: delivery.Delivered},
	}
	live := []domain.ChatMessage{
		{ID: "c", CreatedAt: at(2), Status: delivery.Sent},
		{ID: "b", CreatedAt: at(3), Status: delivery.Read},
		{ID: "a", CreatedAt: at(1), Status: delivery.Sent},
		{ID: "d", CreatedAt: at(3), Status: delivery.Sent},
	}

	got := Merge(hist, live)
	var ids []string
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids)
	assert.Equal(t, delivery.Read, got[0].Status, "live sent must not regress history read")
	assert.Equal(t, delivery.Read, got[2].Status, "live read advances history delivered")
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
}
