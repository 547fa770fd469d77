package content

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ai-tutor/internal/ai"
	"github.com/suPer8Hu/ai-tutor/internal/logger"
)

type scriptedProvider struct {
	mu      sync.Mutex
	replies map[string]string
	prompts []string
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	last := messages[len(messages)-1].Content
	p.mu.Lock()
	p.prompts = append(p.prompts, last)
	p.mu.Unlock()
	for topic, reply := range p.replies {
		if strings.Contains(last, topic) {
			if reply == "" {
				return "", errors.New("upstream failure")
			}
			return reply, nil
		}
	}
	return `{"contents":[]}`, nil
}

func newTestGenerator(t *testing.T, p ai.Provider) (*Generator, *Repo) {
	t.Helper()
	repo := NewRepo(openTestDB(t))
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) { return p, nil })
	return NewGenerator(repo, reg, 3, 2, logger.Discard()), repo
}

func TestGenerate_PersistsItemsPerTopic(t *testing.T) {
	p := &scriptedProvider{replies: map[string]string{
		"Photosynthesis": `{"contents":[{"title":"Light reactions","summary":"Chlorophyll absorbs light."},{"title":"Calvin cycle","summary":"Carbon is fixed."},{"title":"Stomata","summary":"Gas exchange."}]}`,
	}}
	gen, repo := newTestGenerator(t, p)

	created, err := gen.Generate(context.Background(), "u1", []string{"  Photosynthesis  ", ""})
	require.NoError(t, err)
	require.Len(t, created, 3)
	for _, c := range created {
		require.NotEmpty(t, c.ID)
		require.Equal(t, "u1", c.UserID)
		require.Equal(t, "Photosynthesis", c.TopicName)
		require.Equal(t, SourceGenerated, c.SourceType)
	}
	require.Equal(t, "Light reactions", created[0].Title)

	list, err := repo.ListWithProgress(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	require.Len(t, p.prompts, 1)
	require.Contains(t, p.prompts[0], `Generate 3 learning content items for the topic: "Photosynthesis"`)
}

func TestGenerate_SkipsFailedTopic(t *testing.T) {
	p := &scriptedProvider{replies: map[string]string{
		"Cells":  "```json\n{\"contents\":[{\"title\":\"Membranes\",\"summary\":\"Lipid bilayer.\"}]}\n```",
		"Broken": "",
	}}
	gen, _ := newTestGenerator(t, p)

	created, err := gen.Generate(context.Background(), "u1", []string{"Broken", "Cells"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, "Membranes", created[0].Title)
	require.Equal(t, "Cells", created[0].TopicName)
}

func TestGenerate_NoTopics(t *testing.T) {
	gen, _ := newTestGenerator(t, &scriptedProvider{})
	_, err := gen.Generate(context.Background(), "u1", []string{" ", ""})
	require.ErrorIs(t, err, ErrNoTopics)
}

func TestGenerate_NotConfigured(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	gen := NewGenerator(repo, ai.NewRegistry(), 3, 1, logger.Discard())
	_, err := gen.Generate(context.Background(), "u1", []string{"Cells"})
	require.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestParseItems(t *testing.T) {
	items, err := parseItems(`[{"title":"a","summary":"b"}]`)
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, err = parseItems("```\n{\"contents\":[{\"title\":\"x\"}]}\n```")
	require.NoError(t, err)
	require.Equal(t, "x", items[0].Title)

	_, err = parseItems("not json")
	require.Error(t, err)
	_, err = parseItems("  ")
	require.Error(t, err)
}
