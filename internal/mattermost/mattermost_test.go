package mattermost

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"attendance/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSigner struct{}

func (stubSigner) SignAction(action, value, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("no user")
	}
	return action + ":" + value + ":" + userID, nil
}

// fakeServer answers the few Mattermost endpoints the bot uses and keeps what it got.
type fakeServer struct {
	mu      sync.Mutex
	auth    []string
	created []Post
	updated map[string]Post
	dms     [][]string
	failAll bool
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{updated: map[string]Post{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/channels/direct", func(w http.ResponseWriter, r *http.Request) {
		var users []string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&users))
		fs.mu.Lock()
		fs.dms = append(fs.dms, users)
		fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "dm-" + users[0]})
	})
	mux.HandleFunc("/api/v4/posts", func(w http.ResponseWriter, r *http.Request) {
		var p Post
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		fs.mu.Lock()
		p.ID = "post-1"
		fs.created = append(fs.created, p)
		fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("/api/v4/posts/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var p Post
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		fs.mu.Lock()
		fs.updated[r.URL.Path[len("/api/v4/posts/"):]] = p
		fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(p)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.auth = append(fs.auth, r.Header.Get("Authorization"))
		fail := fs.failAll
		fs.mu.Unlock()
		if fail {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return fs, srv
}

func TestTransportSendCard(t *testing.T) {
	fs, srv := newFakeServer(t)
	tr := NewTransport(NewClient(srv.URL, "bot-token"), NewRenderer("https://bot.example", stubSigner{}))

	card := service.Card{
		Text: "new request",
		Actions: []service.CardAction{
			{Name: service.ActionApprove, Label: "Approve", Style: "success", Value: "r1"},
			{Name: service.ActionReject, Label: "Reject", Style: "danger", Value: "r1"},
		},
	}
	d, err := tr.SendCard(context.Background(), "admin-1", card)
	require.NoError(t, err)
	assert.Equal(t, service.Delivery{ChatRef: "dm-admin-1", MessageRef: "post-1"}, d)

	require.Len(t, fs.dms, 1)
	assert.Equal(t, []string{"admin-1", "me"}, fs.dms[0])
	for _, h := range fs.auth {
		assert.Equal(t, "Bearer bot-token", h)
	}

	require.Len(t, fs.created, 1)
	post := fs.created[0]
	assert.Equal(t, "dm-admin-1", post.ChannelID)
	require.Len(t, post.Props.Attachments, 1)
	att := post.Props.Attachments[0]
	assert.Equal(t, "new request", att.Text)
	require.Len(t, att.Actions, 2)
	assert.Equal(t, "Approve", att.Actions[0].Name)
	assert.Equal(t, "https://bot.example/api/mattermost/actions/approve", att.Actions[0].Integration.URL)
	assert.Equal(t, "approve:r1:admin-1", att.Actions[0].Integration.Context[contextTokenKey])
	assert.Equal(t, "https://bot.example/api/mattermost/actions/reject", att.Actions[1].Integration.URL)
}

func TestTransportEditCardDropsButtons(t *testing.T) {
	fs, srv := newFakeServer(t)
	tr := NewTransport(NewClient(srv.URL, "bot-token"), NewRenderer("https://bot.example", stubSigner{}))

	err := tr.EditCard(context.Background(), service.Delivery{ChatRef: "dm-a", MessageRef: "p9"}, service.Card{Text: "approved"})
	require.NoError(t, err)

	post, ok := fs.updated["p9"]
	require.True(t, ok)
	assert.Equal(t, "p9", post.ID)
	assert.Equal(t, "dm-a", post.ChannelID)
	require.Len(t, post.Props.Attachments, 1)
	assert.Empty(t, post.Props.Attachments[0].Actions)
	assert.Equal(t, "#8a8a8a", post.Props.Attachments[0].Color)
}

func TestTransportSendText(t *testing.T) {
	fs, srv := newFakeServer(t)
	tr := NewTransport(NewClient(srv.URL, "bot-token"), NewRenderer("https://bot.example", stubSigner{}))

	require.NoError(t, tr.SendText(context.Background(), "u1", "approved"))
	require.Len(t, fs.created, 1)
	assert.Equal(t, "approved", fs.created[0].Message)
	assert.Equal(t, "dm-u1", fs.created[0].ChannelID)
}

func TestClientAPIError(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.failAll = true
	tr := NewTransport(NewClient(srv.URL, "bot-token"), NewRenderer("https://bot.example", stubSigner{}))

	_, err := tr.SendCard(context.Background(), "admin-1", service.Card{Text: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "boom")
}

func TestRendererSignFailure(t *testing.T) {
	r := NewRenderer("https://bot.example", stubSigner{})
	_, err := r.Attachments("x", []service.CardAction{{Name: service.ActionApprove, Value: "r1"}}, "")
	require.Error(t, err)
}

func TestActionRequestToken(t *testing.T) {
	assert.Empty(t, (&ActionRequest{}).Token())
	assert.Empty(t, (&ActionRequest{Context: map[string]any{contextTokenKey: 42}}).Token())
	assert.Equal(t, "tok", (&ActionRequest{Context: map[string]any{contextTokenKey: "tok"}}).Token())
}
