package agentmail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agentmail-skill/internal/source"
)

// fakeAPI routes requests by escaped path to canned responses.
type fakeAPI struct {
	routes   map[string]string
	statuses map[string]int

	mu   sync.Mutex
	hits []string
}

func (f *fakeAPI) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hits...)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.EscapedPath()
	f.mu.Lock()
	f.hits = append(f.hits, key+"?"+r.URL.RawQuery)
	f.mu.Unlock()

	if status, ok := f.statuses[key]; ok {
		w.WriteHeader(status)
		w.Write([]byte("nope"))
		return
	}
	body, ok := f.routes[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write([]byte(body))
}

func newTestMailbox(t *testing.T, api *fakeAPI, inboxID string) *Mailbox {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewMailbox(NewClient(srv.URL, staticToken("k")), inboxID, nil)
}

func TestMailbox_ListThreads(t *testing.T) {
	api := &fakeAPI{routes: map[string]string{
		"GET /v0/inboxes/in%2F1/threads": `{"threads":[{"id":"t1","subject":"Hi","message_count":2,"participants":["a@x.io"]}],"cursor":"next"}`,
	}}
	mb := newTestMailbox(t, api, "")

	page, err := mb.ListThreads(context.Background(), "in/1", 20, "abc")
	require.NoError(t, err)

	require.Len(t, page.Threads, 1)
	assert.Equal(t, "t1", page.Threads[0].ID)
	assert.Equal(t, 2, page.Threads[0].MessageCount)
	require.NotNil(t, page.Cursor)
	assert.Equal(t, "next", *page.Cursor)
	assert.Equal(t, []string{"GET /v0/inboxes/in%2F1/threads?cursor=abc&limit=20"}, api.requests())
}

func TestMailbox_ListThreads_EmptyPage(t *testing.T) {
	api := &fakeAPI{routes: map[string]string{
		"GET /v0/inboxes/in1/threads": `{"cursor":null}`,
	}}
	mb := newTestMailbox(t, api, "")

	page, err := mb.ListThreads(context.Background(), "in1", 20, "")
	require.NoError(t, err)

	assert.NotNil(t, page.Threads)
	assert.Empty(t, page.Threads)
	assert.Nil(t, page.Cursor)
	assert.Equal(t, []string{"GET /v0/inboxes/in1/threads?limit=20"}, api.requests())
}

func TestMailbox_GetThread(t *testing.T) {
	api := &fakeAPI{routes: map[string]string{
		"GET /v0/threads/t1": `{"id":"t1","subject":"Hi","messages":[{"id":"m1","snippet":"hello"}]}`,
	}}
	mb := newTestMailbox(t, api, "")

	thread, err := mb.GetThread(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "hello", thread.Messages[0].Snippet)
}

func TestMailbox_GetMessage(t *testing.T) {
	api := &fakeAPI{routes: map[string]string{
		"GET /v0/messages/m1": `{"id":"m1","thread_id":"t1","body_html":"<p>x</p>","attachments":[{"filename":"a.txt"}]}`,
	}}
	mb := newTestMailbox(t, api, "inbox")

	msg, err := mb.GetMessage(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "t1", msg.ThreadID)
	assert.Equal(t, "<p>x</p>", msg.BodyHTML)
	require.Len(t, msg.Attachments, 1)
}

func TestMailbox_GetMessage_ThreadScanFallback(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			api := &fakeAPI{
				statuses: map[string]int{"GET /v0/messages/m9": status},
				routes: map[string]string{
					"GET /v0/inboxes/inbox/threads":  `{"threads":[{"id":"t1"},{"id":"t2"}],"cursor":null}`,
					"GET /v0/threads/t1":             `{"id":"t1","messages":[{"id":"m1"}]}`,
					"GET /v0/threads/t2":             `{"id":"t2","messages":[{"id":"m8"},{"id":"m9"}]}`,
					"GET /v0/threads/t2/messages/m9": `{"id":"m9","body_text":"found"}`,
				},
			}
			mb := newTestMailbox(t, api, "inbox")

			msg, err := mb.GetMessage(context.Background(), "m9")
			require.NoError(t, err)
			assert.Equal(t, "found", msg.BodyText)
			assert.Equal(t, "t2", msg.ThreadID)
		})
	}
}

func TestMailbox_GetMessage_ScanFollowsCursor(t *testing.T) {
	api := &fakeAPI{
		statuses: map[string]int{"GET /v0/messages/m2": http.StatusNotImplemented},
		routes: map[string]string{
			"GET /v0/threads/t1":             `{"messages":[{"id":"m1"}]}`,
			"GET /v0/threads/t2":             `{"messages":[{"id":"m2"}]}`,
			"GET /v0/threads/t2/messages/m2": `{"id":"m2","thread_id":"t2"}`,
		},
	}
	// Thread pages are keyed on the cursor, which fakeAPI ignores.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/inboxes/inbox/threads" {
			api.ServeHTTP(w, r)
			return
		}
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		switch r.URL.Query().Get("cursor") {
		case "":
			w.Write([]byte(`{"threads":[{"id":"t1"}],"cursor":"p2"}`))
		case "p2":
			w.Write([]byte(`{"threads":[{"id":"t2"}],"cursor":null}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()
	mb := NewMailbox(NewClient(srv.URL, staticToken("k")), "inbox", nil)

	msg, err := mb.GetMessage(context.Background(), "m2")
	require.NoError(t, err)
	assert.Equal(t, "m2", msg.ID)
}

func TestMailbox_GetMessage_ScanStopsAfterMaxPages(t *testing.T) {
	var pages int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v0/messages/m2":
			w.WriteHeader(http.StatusNotFound)
		case "/v0/inboxes/inbox/threads":
			mu.Lock()
			pages++
			mu.Unlock()
			w.Write([]byte(`{"threads":[],"cursor":"again"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()
	mb := NewMailbox(NewClient(srv.URL, staticToken("k")), "inbox", nil)

	_, err := mb.GetMessage(context.Background(), "m2")
	require.Error(t, err)
	assert.True(t, source.IsNotFound(err))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, scanMaxPages, pages)
}

func TestMailbox_GetMessage_FallbackMissReturnsOriginalError(t *testing.T) {
	api := &fakeAPI{
		statuses: map[string]int{"GET /v0/messages/m9": http.StatusNotFound},
		routes: map[string]string{
			"GET /v0/inboxes/inbox/threads": `{"threads":[{"id":"t1"}],"cursor":null}`,
			"GET /v0/threads/t1":            `{"id":"t1","messages":[{"id":"m1"}]}`,
		},
	}
	mb := newTestMailbox(t, api, "inbox")

	_, err := mb.GetMessage(context.Background(), "m9")
	require.Error(t, err)
	assert.Equal(t, "AgentMail API error: 404 Not Found — nope", err.Error())
}

func TestMailbox_GetMessage_NoFallbackWithoutInbox(t *testing.T) {
	api := &fakeAPI{statuses: map[string]int{"GET /v0/messages/m9": http.StatusNotFound}}
	mb := newTestMailbox(t, api, "")

	_, err := mb.GetMessage(context.Background(), "m9")
	require.Error(t, err)
	assert.True(t, source.IsNotFound(err))
	assert.Len(t, api.requests(), 1)
}

func TestMailbox_GetMessage_NoFallbackOnServerError(t *testing.T) {
	api := &fakeAPI{statuses: map[string]int{"GET /v0/messages/m9": http.StatusInternalServerError}}
	mb := newTestMailbox(t, api, "inbox")

	_, err := mb.GetMessage(context.Background(), "m9")
	require.Error(t, err)
	assert.Len(t, api.requests(), 1)
}

func TestMailbox_SendAndReply(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(data, &body))
		bodies = append(bodies, body)

		switch r.URL.Path {
		case "/v0/inboxes/in1/messages":
			w.Write([]byte(`{"message_id":"m1","thread_id":"t1"}`))
		case "/v0/threads/t1/replies":
			w.Write([]byte(`{"message_id":"m2","thread_id":"t1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	mb := NewMailbox(NewClient(srv.URL, staticToken("k")), "", nil)

	receipt, err := mb.SendMessage(context.Background(), source.OutgoingMessage{
		InboxID:  "in1",
		To:       []string{"a@example.com"},
		Subject:  "Hello",
		BodyText: "Body",
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", receipt.MessageID)

	receipt, err = mb.ReplyToThread(context.Background(), "t1", "Thanks")
	require.NoError(t, err)
	assert.Equal(t, "m2", receipt.MessageID)
	assert.Equal(t, "t1", receipt.ThreadID)

	require.Len(t, bodies, 2)
	assert.Equal(t, map[string]any{"to": []any{"a@example.com"}, "subject": "Hello", "body_text": "Body"}, bodies[0])
	assert.Equal(t, map[string]any{"body_text": "Thanks"}, bodies[1])
}
