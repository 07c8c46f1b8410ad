package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/liliang-cn/ragchat/internal/config"
	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/liliang-cn/ragchat/internal/embedding"
	"go.uber.org/zap"
)

// Response modes
const (
	ResponseModeTreeSummarize = "tree_summarize"
	ResponseModeCompact       = "compact"
)

const treeSummarizePrompt = `Context information from multiple sources is below.
---------------------
%s
---------------------
Given the information from multiple sources and not prior knowledge, answer the query.
Query: %s
Answer: `

const textQAPrompt = `Context information is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s
Answer: `

const refinePrompt = `The original query is as follows: %s
We have provided an existing answer: %s
We have the opportunity to refine the existing answer (only if needed) with some more context below.
------------
%s
------------
Given the new context, refine the original answer to better answer the query. If the context isn't useful, return the original answer.
Refined Answer: `

// Completer answers a single prompt
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// QueryEngine retrieves the most relevant records for a question and
// synthesizes one answer from them through the language model. Answers are
// never streamed.
type QueryEngine struct {
	collection *domain.Collection
	records    RecordStore
	embedder   embedding.Embedder
	llm        Completer
	cfg        config.QueryConfig
	logger     *zap.Logger

	mu      sync.RWMutex
	ready   bool
	indexed int
}

// NewQueryEngine creates a query engine. Build must succeed before Query is usable.
func NewQueryEngine(
	collection *domain.Collection,
	records RecordStore,
	embedder embedding.Embedder,
	llm Completer,
	cfg config.QueryConfig,
	logger *zap.Logger,
) *QueryEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 2
	}
	if cfg.SummaryChunkChars <= 0 {
		cfg.SummaryChunkChars = 4000
	}
	if cfg.ResponseMode == "" {
		cfg.ResponseMode = ResponseModeTreeSummarize
	}
	return &QueryEngine{
		collection: collection,
		records:    records,
		embedder:   embedder,
		llm:        llm,
		cfg:        cfg,
		logger:     logger,
	}
}

// Build inspects the collection and marks the engine ready when it holds at
// least one non-empty document. The report is returned even when the
// collection is empty.
func (e *QueryEngine) Build(ctx context.Context) (*domain.CollectionReport, error) {
	report, err := BuildReport(ctx, e.collection, e.records)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}

	all, err := e.records.Get(ctx, nil)
	if err != nil {
		return nil, err
	}
	indexed := 0
	for i, text := range all.Documents {
		if strings.TrimSpace(text) != "" && len(all.Embeddings[i]) > 0 {
			indexed++
		}
	}

	e.logger.Info("collection found",
		zap.String("collection", report.Collection),
		zap.Int("count", report.Count),
		zap.Strings("ids", report.IDs),
	)
	for i, id := range report.IDs {
		e.logger.Debug("document metadata", zap.String("id", id), zap.Any("metadata", report.Metadatas[i]))
	}

	e.mu.Lock()
	e.ready = indexed > 0
	e.indexed = indexed
	e.mu.Unlock()

	if indexed == 0 {
		e.logger.Warn("no documents to index", zap.String("collection", report.Collection))
		return report, domain.ErrEmptyCollection
	}
	e.logger.Info("index built", zap.Int("documents", indexed))
	return report, nil
}

// Ready reports whether Build found documents to query
func (e *QueryEngine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// Query answers question from the top matching records. An empty answer with
// a nil error means nothing could be synthesized.
func (e *QueryEngine) Query(ctx context.Context, question string) (string, error) {
	if !e.Ready() {
		return "", domain.ErrIndexNotLoaded
	}

	vector, err := embedding.EmbedOne(ctx, e.embedder, question)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}

	scored, err := e.records.Search(ctx, vector, 0)
	if err != nil {
		return "", fmt.Errorf("failed to search collection: %w", err)
	}

	var texts []string
	for _, s := range scored {
		if strings.TrimSpace(s.Record.Text) == "" {
			continue
		}
		texts = append(texts, s.Record.Text)
		e.logger.Debug("retrieved document", zap.String("id", s.Record.ID), zap.Float64("score", s.Score))
		if len(texts) == e.cfg.TopK {
			break
		}
	}
	if len(texts) == 0 {
		return "", nil
	}

	if e.cfg.ResponseMode == ResponseModeCompact {
		return e.compact(ctx, question, texts)
	}
	return e.treeSummarize(ctx, question, texts)
}

// treeSummarize packs texts into groups, summarizes each group against the
// question and repeats on the summaries until a single answer remains.
func (e *QueryEngine) treeSummarize(ctx context.Context, question string, texts []string) (string, error) {
	for round := 0; ; round++ {
		groups := packTexts(texts, e.cfg.SummaryChunkChars)
		if round > 0 && len(groups) > 1 && len(groups) >= len(texts) {
			// summaries too long to pack; merge pairwise so every round shrinks
			groups = pairTexts(texts)
		}

		summaries := make([]string, 0, len(groups))
		for _, group := range groups {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			answer, err := e.llm.Complete(ctx, fmt.Sprintf(treeSummarizePrompt, group, question))
			if err != nil {
				return "", err
			}
			// blank summaries carry nothing into the next round
			if strings.TrimSpace(answer) == "" {
				continue
			}
			summaries = append(summaries, answer)
		}

		switch len(summaries) {
		case 0:
			return "", nil
		case 1:
			return summaries[0], nil
		}
		texts = summaries
	}
}

// compact answers from the first packed group and refines the answer with each following group
func (e *QueryEngine) compact(ctx context.Context, question string, texts []string) (string, error) {
	groups := packTexts(texts, e.cfg.SummaryChunkChars)

	answer, err := e.llm.Complete(ctx, fmt.Sprintf(textQAPrompt, groups[0], question))
	if err != nil {
		return "", err
	}
	for _, group := range groups[1:] {
		answer, err = e.llm.Complete(ctx, fmt.Sprintf(refinePrompt, question, answer, group))
		if err != nil {
			return "", err
		}
	}
	return answer, nil
}

// packTexts joins consecutive texts while the group stays within limit characters
func packTexts(texts []string, limit int) []string {
	var groups []string
	var current strings.Builder
	for _, text := range texts {
		if current.Len() > 0 && current.Len()+2+len(text) > limit {
			groups = append(groups, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(text)
	}
	if current.Len() > 0 {
		groups = append(groups, current.String())
	}
	return groups
}

func pairTexts(texts []string) []string {
	groups := make([]string, 0, (len(texts)+1)/2)
	for i := 0; i < len(texts); i += 2 {
		if i+1 < len(texts) {
			groups = append(groups, texts[i]+"\n\n"+texts[i+1])
		} else {
			groups = append(groups, texts[i])
		}
	}
	return groups
}
