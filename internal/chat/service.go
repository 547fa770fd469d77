package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/ai-tutor/internal/ai"
	"github.com/suPer8Hu/ai-tutor/internal/content"
	"gorm.io/gorm"
)

var (
	ErrContentNotFound   = errors.New("content not found")
	ErrSessionNotFound   = errors.New("chat session not found")
	ErrStreamUnsupported = errors.New("provider does not support streaming")
)

// ContentStore is the slice of the content repository the chat flow needs.
type ContentStore interface {
	GetForUser(ctx context.Context, userID, id string) (*content.Content, error)
	TouchProgress(ctx context.Context, userID, contentID string, now time.Time) error
}

// Locker serializes session creation per (user, content). Optional.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

type Options struct {
	Locker            Locker
	HistoryLimit      int
	CompletionTimeout time.Duration
	Logger            *logrus.Logger
}

type Service struct {
	repo              *Repo
	contents          ContentStore
	registry          *ai.Registry
	locker            Locker
	historyLimit      int
	completionTimeout time.Duration
	log               *logrus.Logger
	now               func() time.Time
}

const sessionLockTTL = 5 * time.Second

func NewService(repo *Repo, contents ContentStore, registry *ai.Registry, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		repo:              repo,
		contents:          contents,
		registry:          registry,
		locker:            opts.Locker,
		historyLimit:      opts.HistoryLimit,
		completionTimeout: opts.CompletionTimeout,
		log:               log,
		now:               time.Now,
	}
}

// ResolveSession returns the session for (userID, c), creating it on first use.
// A non-empty existingSessionID must name a session of userID on c.
func (s *Service) ResolveSession(ctx context.Context, userID string, c *content.Content, existingSessionID string) (*Session, error) {
	if existingSessionID = strings.TrimSpace(existingSessionID); existingSessionID != "" {
		sess, err := s.repo.GetSession(ctx, existingSessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, err
		}
		if sess.UserID != userID || sess.ContentID != c.ID {
			return nil, ErrSessionNotFound
		}
		return sess, nil
	}

	sess, err := s.repo.FindSession(ctx, userID, c.ID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if s.locker != nil {
		unlock, lerr := s.locker.Lock(ctx, "chat:session:"+userID+":"+c.ID, sessionLockTTL)
		if lerr != nil {
			// the unique index still guards against duplicates
			s.log.WithError(lerr).WithFields(logrus.Fields{
				"user_id":    userID,
				"content_id": c.ID,
			}).Warn("session lock unavailable")
		} else {
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					s.log.WithError(err).Warn("session lock release failed")
				}
			}()
			if sess, err := s.repo.FindSession(ctx, userID, c.ID); err == nil {
				return sess, nil
			}
		}
	}

	sess, _, err = s.repo.CreateSessionOrGetExisting(ctx, &Session{
		UserID:    userID,
		ContentID: c.ID,
		Title:     c.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}
	return sess, nil
}

func (s *Service) AppendMessage(ctx context.Context, sessionID, role, text string) (*Message, error) {
	m := &Message{
		ChatSessionID: sessionID,
		Role:          role,
		Content:       text,
		CreatedAt:     s.now(),
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) TouchProgress(ctx context.Context, userID, contentID string) error {
	return s.contents.TouchProgress(ctx, userID, contentID, s.now())
}

type TurnRequest struct {
	UserID    string
	ContentID string
	SessionID string
	Messages  []ai.Message
}

// Turn is a prepared chat turn whose reply has not been generated yet.
type Turn struct {
	Session *Session
	Content *content.Content

	provider ai.StreamProvider
	prompt   []ai.Message
}

// BeginTurn does everything that can fail before the response starts:
// provider lookup, content and session resolution, and persisting the
// trailing user message.
func (s *Service) BeginTurn(ctx context.Context, req TurnRequest) (*Turn, error) {
	provider, err := s.registry.Default(ctx)
	if err != nil {
		return nil, err
	}
	sp, ok := provider.(ai.StreamProvider)
	if !ok {
		return nil, ErrStreamUnsupported
	}

	c, err := s.contents.GetForUser(ctx, req.UserID, req.ContentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}

	sess, err := s.ResolveSession(ctx, req.UserID, c, req.SessionID)
	if err != nil {
		return nil, err
	}

	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == ai.RoleUser {
		if _, err := s.AppendMessage(ctx, sess.ID, ai.RoleUser, req.Messages[n-1].Content); err != nil {
			return nil, fmt.Errorf("store user message: %w", err)
		}
	}

	if err := s.TouchProgress(ctx, req.UserID, c.ID); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id":    req.UserID,
			"content_id": c.ID,
		}).Warn("touch progress failed")
	}

	return &Turn{
		Session:  sess,
		Content:  c,
		provider: sp,
		prompt:   buildPrompt(c, req.Messages, s.historyLimit),
	}, nil
}

// ReplyResult is delivered once the reply stream has ended.
type ReplyResult struct {
	Message *Message
	Err     error
}

// StreamReply generates the assistant reply for t. Chunks are sent as they
// arrive; after the chunk channel closes, exactly one ReplyResult is sent.
// Generation and persistence are detached from ctx cancellation so a client
// disconnect does not lose the reply, but callers must keep draining chunks.
func (s *Service) StreamReply(ctx context.Context, t *Turn) (<-chan string, <-chan ReplyResult) {
	outChunks := make(chan string, 16)
	outResult := make(chan ReplyResult, 1)

	go func() {
		genCtx := context.WithoutCancel(ctx)
		if s.completionTimeout > 0 {
			var cancel context.CancelFunc
			genCtx, cancel = context.WithTimeout(genCtx, s.completionTimeout)
			defer cancel()
		}

		res := s.streamAndStore(genCtx, t, outChunks)
		close(outChunks)
		outResult <- res
		close(outResult)
	}()

	return outChunks, outResult
}

func (s *Service) streamAndStore(ctx context.Context, t *Turn, out chan<- string) ReplyResult {
	pChunks, pErrs := t.provider.StreamChat(ctx, t.prompt)

	var b strings.Builder
	for c := range pChunks {
		b.WriteString(c)
		out <- c
	}
	if err := <-pErrs; err != nil {
		return ReplyResult{Err: err}
	}

	msg, err := s.AppendMessage(ctx, t.Session.ID, ai.RoleAssistant, b.String())
	if err != nil {
		return ReplyResult{Err: fmt.Errorf("store assistant message: %w", err)}
	}
	return ReplyResult{Message: msg}
}

// Transcript is what a client needs to resume a conversation.
type Transcript struct {
	Content   *content.Content `json:"content"`
	SessionID string           `json:"chat_session_id,omitempty"`
	Messages  []Message        `json:"messages"`
}

// LoadTranscript returns the content and, if a session exists, its messages
// oldest first. It never creates a session.
func (s *Service) LoadTranscript(ctx context.Context, userID, contentID string) (*Transcript, error) {
	c, err := s.contents.GetForUser(ctx, userID, contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}

	tr := &Transcript{Content: c, Messages: []Message{}}
	sess, err := s.repo.FindSession(ctx, userID, c.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tr, nil
	}
	if err != nil {
		return nil, err
	}
	tr.SessionID = sess.ID

	msgs, err := s.repo.ListMessages(ctx, sess.ID, 0)
	if err != nil {
		return nil, err
	}
	tr.Messages = msgs
	return tr, nil
}
