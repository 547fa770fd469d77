package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ai-tutor/internal/client"
)

func NewChatCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <content-id>",
		Short: "Chat with the tutor about a content",
		Long: `Open an interactive lesson about a content.

Previous messages are shown first. A new conversation starts with an
introduction from the tutor. Type a message and press enter; an empty
line or EOF (Ctrl-D) ends the session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, newClient(), args[0])
		},
	}
}

func runChat(cmd *cobra.Command, c *client.Client, contentID string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	tr, err := c.LoadChat(ctx, contentID)
	if err != nil {
		return fmt.Errorf("loading chat: %w", err)
	}
	fmt.Fprintf(out, "# %s\n%s\n", tr.Content.Title, tr.Content.Summary)

	r := newTermRenderer(out)
	r.Render(tr.Messages)
	ctrl := client.NewController(c, contentID, tr.Messages, tr.SessionID, r, &stderrNotifier{w: cmd.ErrOrStderr()})

	if err := ctrl.AutoStart(ctx); err != nil {
		return err
	}

	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "\n> ")
		if !in.Scan() {
			fmt.Fprintln(out)
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			return nil
		}
		r.skipEcho()
		// failures reach the notifier; the session stays open
		_ = ctrl.Submit(ctx, line)
	}
}

type stderrNotifier struct {
	w io.Writer
}

func (n *stderrNotifier) Notify(err error) {
	fmt.Fprintf(n.w, "\nerror: %v\n", err)
}

// termRenderer prints only what is new since the last frame.
type termRenderer struct {
	w       io.Writer
	idx     int
	printed int
	started bool
	// the user's own line is already on screen
	skipUser bool
}

func newTermRenderer(w io.Writer) *termRenderer {
	return &termRenderer{w: w}
}

func (r *termRenderer) skipEcho() { r.skipUser = true }

func (r *termRenderer) Render(messages []client.Message) {
	for r.idx < len(messages) {
		m := messages[r.idx]
		if m.Role == "user" && r.skipUser {
			r.skipUser = false
			r.next()
			continue
		}
		if !r.started {
			fmt.Fprintf(r.w, "\n%s: ", roleLabel(m.Role))
			r.started = true
		}
		if len(m.Content) > r.printed {
			fmt.Fprint(r.w, m.Content[r.printed:])
			r.printed = len(m.Content)
		}
		if r.idx == len(messages)-1 {
			// may still be streaming
			return
		}
		fmt.Fprintln(r.w)
		r.next()
	}
}

func (r *termRenderer) next() {
	r.idx++
	r.printed = 0
	r.started = false
}

func roleLabel(role string) string {
	if role == "assistant" {
		return "tutor"
	}
	return "you"
}
