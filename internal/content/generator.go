package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/ai-tutor/internal/ai"
	"github.com/suPer8Hu/ai-tutor/internal/observability"
	"golang.org/x/sync/errgroup"
)

var ErrNoTopics = errors.New("no topics provided")

const generationSystemPrompt = "You are a helpful educational assistant. Output JSON only."

type Generator struct {
	repo          *Repo
	registry      *ai.Registry
	itemsPerTopic int
	concurrency   int
	log           *logrus.Logger
}

func NewGenerator(repo *Repo, registry *ai.Registry, itemsPerTopic, concurrency int, log *logrus.Logger) *Generator {
	if itemsPerTopic <= 0 {
		itemsPerTopic = 3
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Generator{
		repo:          repo,
		registry:      registry,
		itemsPerTopic: itemsPerTopic,
		concurrency:   concurrency,
		log:           log,
	}
}

type generatedItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// NormalizeTopics trims topics and drops blanks.
func NormalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Generate records each topic, asks the completion gateway for learning items
// per topic and stores them as generated contents. A topic whose generation
// fails is logged and skipped.
func (g *Generator) Generate(ctx context.Context, userID string, topics []string) ([]Content, error) {
	topics = NormalizeTopics(topics)
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}

	provider, err := g.registry.Default(ctx)
	if err != nil {
		return nil, err
	}

	for _, t := range topics {
		if err := g.repo.CreateTopic(ctx, &Topic{UserID: userID, Name: t}); err != nil {
			return nil, fmt.Errorf("save topic %q: %w", t, err)
		}
	}

	results := make([][]generatedItem, len(topics))
	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i, topic := range topics {
		eg.Go(func() error {
			items, err := g.generateItems(ctx, provider, topic)
			if err != nil {
				observability.Default().GeneratedContentsTotal.WithLabelValues("topic_failed").Inc()
				g.log.WithError(err).WithFields(logrus.Fields{
					"user_id": userID,
					"topic":   topic,
				}).Warn("content generation failed for topic")
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = eg.Wait()

	created := make([]Content, 0, len(topics)*g.itemsPerTopic)
	for i, topic := range topics {
		for _, item := range results[i] {
			title := strings.TrimSpace(item.Title)
			if title == "" {
				continue
			}
			c := &Content{
				UserID:     userID,
				Title:      title,
				Summary:    strings.TrimSpace(item.Summary),
				TopicName:  topic,
				SourceType: SourceGenerated,
			}
			if err := g.repo.CreateContent(ctx, c); err != nil {
				g.log.WithError(err).WithFields(logrus.Fields{
					"user_id": userID,
					"topic":   topic,
				}).Warn("failed to store generated content")
				continue
			}
			observability.Default().GeneratedContentsTotal.WithLabelValues("created").Inc()
			created = append(created, *c)
		}
	}
	return created, nil
}

func (g *Generator) generateItems(ctx context.Context, provider ai.Provider, topic string) ([]generatedItem, error) {
	prompt := fmt.Sprintf(`Generate %d learning content items for the topic: %q.
For each item, provide a title and a short summary (max 2 sentences).
Return strictly as a JSON object with a key "contents" containing an array of objects with keys "title" and "summary".`,
		g.itemsPerTopic, topic)

	raw, err := ai.ChatJSON(ctx, provider, []ai.Message{
		{Role: ai.RoleSystem, Content: generationSystemPrompt},
		{Role: ai.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	return parseItems(raw)
}

// parseItems accepts {"contents":[...]} and, from less obedient models,
// a bare array or either of those wrapped in a markdown code fence.
func parseItems(raw string) ([]generatedItem, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil, errors.New("empty completion")
	}

	if strings.HasPrefix(s, "[") {
		var items []generatedItem
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
		return items, nil
	}

	var wrapped struct {
		Contents []generatedItem `json:"contents"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return wrapped.Contents, nil
}
