package commands

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ai-tutor/internal/client"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3", "abc", "today")
	out, err := runCmd(t, "", "version")
	require.NoError(t, err)
	require.Contains(t, out, "tutor 1.2.3")
	require.Contains(t, out, "Commit: abc")
}

func TestChatCmd_AutoStartsAndSubmits(t *testing.T) {
	var chatCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contents/c1/chat":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"content":{"id":"c1","title":"Photosynthesis","summary":"Plants and light"},"messages":[]}}`))
		case "/chat-stream":
			n := chatCalls.Add(1)
			w.Header().Set(client.SessionHeader, "s1")
			if n == 1 {
				_, _ = w.Write([]byte("Welcome to the lesson."))
			} else {
				_, _ = w.Write([]byte("Chlorophyll is green."))
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	out, err := runCmd(t, "what is chlorophyll?\n\n", "chat", "c1", "--api-url", srv.URL, "--token", "tok")
	require.NoError(t, err)
	require.EqualValues(t, 2, chatCalls.Load())
	require.Contains(t, out, "# Photosynthesis")
	require.Contains(t, out, "tutor: Welcome to the lesson.")
	require.Contains(t, out, "tutor: Chlorophyll is green.")
	require.NotContains(t, out, "you: what is chlorophyll?")
}

func TestTermRenderer_PrintsOnlyDeltas(t *testing.T) {
	var buf bytes.Buffer
	r := newTermRenderer(&buf)

	r.Render([]client.Message{{Role: "assistant", Content: ""}})
	r.Render([]client.Message{{Role: "assistant", Content: "Hel"}})
	r.Render([]client.Message{{Role: "assistant", Content: "Hello"}})
	r.Render([]client.Message{{Role: "assistant", Content: "Hello"}, {Role: "user", Content: "hi"}})

	require.Equal(t, "\ntutor: Hello\n\nyou: hi", buf.String())
}

func TestContentsCmd_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"contents":[]}}`))
	}))
	defer srv.Close()

	out, err := runCmd(t, "", "contents", "--api-url", srv.URL)
	require.NoError(t, err)
	require.Contains(t, out, "No contents yet")
}
