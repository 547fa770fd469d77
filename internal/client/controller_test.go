package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRenderer struct {
	mu     sync.Mutex
	frames [][]Message
}

func (r *recordingRenderer) Render(messages []Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, messages)
}

func (r *recordingRenderer) all() [][]Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]Message(nil), r.frames...)
}

type recordingNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *recordingNotifier) Notify(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

// chatServer answers /chat-stream by writing parts with a flush between each.
type chatServer struct {
	*httptest.Server
	calls    atomic.Int32
	mu       sync.Mutex
	requests []ChatRequest
	status   int
	session  string
	parts    [][]byte
	gate     chan struct{}
}

func newChatServer(t *testing.T, parts ...string) *chatServer {
	t.Helper()
	s := &chatServer{status: http.StatusOK, session: "sess-1"}
	for _, p := range parts {
		s.parts = append(s.parts, []byte(p))
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		var req ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		s.mu.Lock()
		s.requests = append(s.requests, req)
		status, parts, gate := s.status, s.parts, s.gate
		s.mu.Unlock()

		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"code":50001,"message":"internal error","data":null,"request_id":"01RID"}`))
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set(SessionHeader, s.session)
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		if gate != nil {
			<-gate
		}
		for _, p := range parts {
			_, _ = w.Write(p)
			w.(http.Flusher).Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *chatServer) lastRequest() ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func TestAutoStart_StreamsIntroOnce(t *testing.T) {
	srv := newChatServer(t, "Welcome ", "to ", "photosynthesis.")
	r := &recordingRenderer{}
	ctrl := NewController(New(srv.URL, "tok"), "c1", nil, "", r, &recordingNotifier{})

	require.NoError(t, ctrl.AutoStart(context.Background()))
	require.NoError(t, ctrl.AutoStart(context.Background()))
	require.EqualValues(t, 1, srv.calls.Load())

	req := srv.lastRequest()
	require.Empty(t, req.Messages)
	require.Equal(t, "c1", req.ContentID)

	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "assistant", msgs[0].Role)
	require.Equal(t, "Welcome to photosynthesis.", msgs[0].Content)
	require.Equal(t, "sess-1", ctrl.SessionID())
	require.Equal(t, StateIdle, ctrl.State())

	// first frame after the response is the empty placeholder
	frames := r.all()
	require.NotEmpty(t, frames)
	require.Equal(t, "", frames[0][0].Content)
}

func TestAutoStart_SkippedWithPreload(t *testing.T) {
	srv := newChatServer(t, "x")
	preload := []Message{{ID: "1", Role: "assistant", Content: "Hello again"}}
	ctrl := NewController(New(srv.URL, "tok"), "c1", preload, "sess-9", nil, nil)

	require.NoError(t, ctrl.AutoStart(context.Background()))
	require.Zero(t, srv.calls.Load())
}

func TestAutoStart_FailureReleasesLatch(t *testing.T) {
	srv := newChatServer(t, "Welcome")
	srv.status = http.StatusInternalServerError
	n := &recordingNotifier{}
	ctrl := NewController(New(srv.URL, "tok"), "c1", nil, "", nil, n)

	err := ctrl.AutoStart(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 50001, apiErr.Code)
	require.Equal(t, "01RID", apiErr.RequestID)
	require.Equal(t, 1, n.count())
	require.Equal(t, StateIdle, ctrl.State())
	require.Empty(t, ctrl.Messages(), "no placeholder without a 2xx")

	srv.mu.Lock()
	srv.status = http.StatusOK
	srv.mu.Unlock()
	require.NoError(t, ctrl.AutoStart(context.Background()))
	require.EqualValues(t, 2, srv.calls.Load())
	require.Len(t, ctrl.Messages(), 1)
}

func TestSubmit_OptimisticAndKeepsKnownSession(t *testing.T) {
	srv := newChatServer(t, "Chlorophyll ", "absorbs light.")
	srv.session = "other-session"
	preload := []Message{
		{ID: "1", Role: "assistant", Content: "Welcome"},
	}
	r := &recordingRenderer{}
	ctrl := NewController(New(srv.URL, "tok"), "c1", preload, "sess-1", r, nil)

	require.ErrorIs(t, ctrl.Submit(context.Background(), "   "), ErrEmptyInput)
	require.Zero(t, srv.calls.Load())

	require.NoError(t, ctrl.Submit(context.Background(), "  What is chlorophyll? "))

	req := srv.lastRequest()
	require.Equal(t, "sess-1", req.ChatSessionID)
	require.Equal(t, []ChatTurn{
		{Role: "assistant", Content: "Welcome"},
		{Role: "user", Content: "What is chlorophyll?"},
	}, req.Messages)

	msgs := ctrl.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "user", msgs[1].Role)
	require.Contains(t, msgs[1].ID, "local-")
	require.Equal(t, "Chlorophyll absorbs light.", msgs[2].Content)
	require.Equal(t, "sess-1", ctrl.SessionID())

	// optimistic user message is rendered before any reply text
	frames := r.all()
	require.Len(t, frames[0], 2)
	require.Equal(t, "What is chlorophyll?", frames[0][1].Content)
}

func TestSubmit_BusyWhileStreaming(t *testing.T) {
	srv := newChatServer(t, "slow reply")
	gate := make(chan struct{})
	srv.gate = gate
	ctrl := NewController(New(srv.URL, "tok"), "c1", nil, "", nil, nil)

	done := make(chan error, 1)
	go func() { done <- ctrl.Submit(context.Background(), "first") }()

	require.Eventually(t, func() bool { return ctrl.State() == StateStreaming }, 2*time.Second, 5*time.Millisecond)
	require.ErrorIs(t, ctrl.Submit(context.Background(), "second"), ErrBusy)

	close(gate)
	require.NoError(t, <-done)
	require.Equal(t, StateIdle, ctrl.State())
	require.EqualValues(t, 1, srv.calls.Load())
}

func TestStream_DecodesRunesSplitAcrossChunks(t *testing.T) {
	word := []byte("こんにちは")
	// split inside the second rune
	srv := newChatServer(t, string(word[:4]), string(word[4:]))
	r := &recordingRenderer{}
	ctrl := NewController(New(srv.URL, "tok"), "c1", nil, "", r, nil)

	require.NoError(t, ctrl.AutoStart(context.Background()))
	msgs := ctrl.Messages()
	require.Equal(t, "こんにちは", msgs[0].Content)

	for _, f := range r.all() {
		for _, m := range f {
			require.True(t, utf8.ValidString(m.Content), "frame %q", m.Content)
			require.NotContains(t, m.Content, "�")
		}
	}
}
