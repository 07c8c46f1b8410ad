package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/liliang-cn/ragchat/internal/config"
	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/liliang-cn/ragchat/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingCompleter struct {
	prompts []string
	err     error
}

func (c *recordingCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	return fmt.Sprintf("summary %d", len(c.prompts)), nil
}

func newTestEngine(t *testing.T, store *testStore, llm Completer, cfg config.QueryConfig) *QueryEngine {
	t.Helper()
	return NewQueryEngine(store.collection, store.records, embedding.NewHashEmbedder(64), llm, cfg, zap.NewNop())
}

func seed(t *testing.T, store *testStore, docs ...domain.SourceDocument) {
	t.Helper()
	svc := NewIngestService(store.collection, store.records, nil, embedding.NewHashEmbedder(64), nil, zap.NewNop())
	result, err := svc.Reconcile(context.Background(), docs, nil)
	require.NoError(t, err)
	require.Zero(t, result.Failed)
}

func TestQueryEngine_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store, doc("/data/blank.txt", "   "))

	engine := newTestEngine(t, store, &recordingCompleter{}, config.QueryConfig{})
	report, err := engine.Build(ctx)
	assert.ErrorIs(t, err, domain.ErrEmptyCollection)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Count)
	assert.False(t, engine.Ready())

	_, err = engine.Query(ctx, "anything")
	assert.ErrorIs(t, err, domain.ErrIndexNotLoaded)
}

func TestQueryEngine_TreeSummarizeSingleGroup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store,
		doc("/data/go.txt", "go channels and goroutines"),
		doc("/data/cake.txt", "flour sugar eggs butter"),
		doc("/data/gc.txt", "go garbage collector and goroutines"),
	)

	llm := &recordingCompleter{}
	engine := newTestEngine(t, store, llm, config.QueryConfig{TopK: 2, ResponseMode: ResponseModeTreeSummarize})
	_, err := engine.Build(ctx)
	require.NoError(t, err)
	require.True(t, engine.Ready())

	answer, err := engine.Query(ctx, "goroutines in go")
	require.NoError(t, err)
	assert.Equal(t, "summary 1", answer)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Query: goroutines in go")
	assert.Contains(t, llm.prompts[0], "go channels and goroutines")
	assert.Contains(t, llm.prompts[0], "go garbage collector and goroutines")
	assert.NotContains(t, llm.prompts[0], "flour")
}

func TestQueryEngine_TreeSummarizeRecurses(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store,
		doc("/data/a.txt", strings.Repeat("alpha ", 10)),
		doc("/data/b.txt", strings.Repeat("bravo ", 10)),
		doc("/data/c.txt", strings.Repeat("charlie ", 10)),
	)

	llm := &recordingCompleter{}
	engine := newTestEngine(t, store, llm, config.QueryConfig{TopK: 3, SummaryChunkChars: 70})
	_, err := engine.Build(ctx)
	require.NoError(t, err)

	answer, err := engine.Query(ctx, "alpha")
	require.NoError(t, err)

	// three leaf summaries, then one or more merge rounds down to a single answer
	require.Greater(t, len(llm.prompts), 3)
	assert.Equal(t, fmt.Sprintf("summary %d", len(llm.prompts)), answer)
	assert.Contains(t, llm.prompts[len(llm.prompts)-1], "summary ")
}

type scriptedCompleter struct {
	replies []string
	calls   int
}

func (c *scriptedCompleter) Complete(_ context.Context, _ string) (string, error) {
	reply := ""
	if c.calls < len(c.replies) {
		reply = c.replies[c.calls]
	}
	c.calls++
	return reply, nil
}

func TestQueryEngine_TreeSummarizeBlankSummaries(t *testing.T) {
	store := newTestStore(t)
	seed(t, store,
		doc("/data/a.txt", strings.Repeat("alpha ", 10)),
		doc("/data/b.txt", strings.Repeat("bravo ", 10)),
	)

	llm := &scriptedCompleter{}
	engine := newTestEngine(t, store, llm, config.QueryConfig{TopK: 2, SummaryChunkChars: 70})
	_, err := engine.Build(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	answer, err := engine.Query(ctx, "alpha")
	require.NoError(t, err)
	assert.Empty(t, answer)
	assert.Equal(t, 2, llm.calls)
}

func TestQueryEngine_TreeSummarizeDropsBlankSummary(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store,
		doc("/data/a.txt", strings.Repeat("alpha ", 10)),
		doc("/data/b.txt", strings.Repeat("bravo ", 10)),
	)

	llm := &scriptedCompleter{replies: []string{"  ", "only answer"}}
	engine := newTestEngine(t, store, llm, config.QueryConfig{TopK: 2, SummaryChunkChars: 70})
	_, err := engine.Build(ctx)
	require.NoError(t, err)

	answer, err := engine.Query(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "only answer", answer)
	assert.Equal(t, 2, llm.calls)
}

func TestQueryEngine_TreeSummarizeCancelled(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, doc("/data/a.txt", "alpha"))

	llm := &scriptedCompleter{}
	engine := newTestEngine(t, store, llm, config.QueryConfig{})
	_, err := engine.Build(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Query(ctx, "alpha")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, llm.calls)
}

func TestQueryEngine_Compact(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store,
		doc("/data/a.txt", strings.Repeat("alpha ", 10)),
		doc("/data/b.txt", strings.Repeat("bravo ", 10)),
	)

	llm := &recordingCompleter{}
	engine := newTestEngine(t, store, llm, config.QueryConfig{TopK: 2, ResponseMode: ResponseModeCompact, SummaryChunkChars: 70})
	_, err := engine.Build(ctx)
	require.NoError(t, err)

	answer, err := engine.Query(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "summary 2", answer)
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "existing answer: summary 1")
}

func TestQueryEngine_LLMError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store, doc("/data/a.txt", "alpha"))

	engine := newTestEngine(t, store, &recordingCompleter{err: errors.New("timeout")}, config.QueryConfig{})
	_, err := engine.Build(ctx)
	require.NoError(t, err)

	_, err = engine.Query(ctx, "alpha")
	assert.EqualError(t, err, "timeout")
}

func TestPackTexts(t *testing.T) {
	assert.Equal(t, []string{"aa\n\nbb", "cc"}, packTexts([]string{"aa", "bb", "cc"}, 6))
	assert.Equal(t, []string{"toolong", "x"}, packTexts([]string{"toolong", "x"}, 3))
	assert.Equal(t, []string{"a\n\nb", "c"}, pairTexts([]string{"a", "b", "c"}))
}
