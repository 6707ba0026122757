package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/kunledollar/multiagent-policy-compliance-rag/internal/errors"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/knowledge"
)

// 各阶段拼接上下文时的字符预算
const defaultContextBudget = 6000

// 无证据时返回的固定答案
const noEvidenceAnswer = "I could not find any relevant policy excerpts for this question."

// 最终答案写作阶段的系统提示词
const ragSystemPrompt = "You are an enterprise policy and compliance assistant. " +
	"Answer strictly based on the provided context. " +
	"If the answer is not present, say that the policy does not specify or that you do not know. " +
	"Always mention which policy documents you used."

// PipelineResult 一次查询的完整结果
type PipelineResult struct {
	Answer    string                      `json:"answer"`
	Contexts  []knowledge.RetrievalResult `json:"contexts"`
	Reasoning string                      `json:"reasoning"`
	FactCheck string                      `json:"fact_check"`
	Sources   []string                    `json:"sources"`
}

// RAGService 检索增强问答流水线。
// 阶段严格串行：检索 -> 重排 -> 摘要 -> 推理 -> 事实核查 -> 写作。
// 检索为空时直接短路返回固定结果，不再调用补全服务；
// 其余任一阶段失败都会中止整个请求，没有部分结果。
type RAGService struct {
	store         knowledge.VectorStore
	embedder      knowledge.Embedder
	completion    knowledge.CompletionClient
	topK          int
	contextBudget int
	logger        *zap.Logger
}

// NewRAGService 创建问答流水线服务
func NewRAGService(store knowledge.VectorStore, embedder knowledge.Embedder, completion knowledge.CompletionClient, topK, contextBudget int, logger *zap.Logger) *RAGService {
	if topK <= 0 {
		topK = 6
	}
	if contextBudget <= 0 {
		contextBudget = defaultContextBudget
	}
	if logger == nil {
		logger = zap.L()
	}
	return &RAGService{
		store:         store,
		embedder:      embedder,
		completion:    completion,
		topK:          topK,
		contextBudget: contextBudget,
		logger:        logger,
	}
}

// AnswerQuery 执行一次完整的查询流水线
func (s *RAGService) AnswerQuery(ctx context.Context, query string) (*PipelineResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewValidationError("query cannot be empty")
	}

	retrieved, err := s.retrieve(ctx, query)
	if err != nil {
		queryTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if len(retrieved) == 0 {
		s.logger.Info("no evidence retrieved, short-circuiting", zap.String("query", query))
		queryTotal.WithLabelValues("no_evidence").Inc()
		return &PipelineResult{
			Answer:    noEvidenceAnswer,
			Contexts:  []knowledge.RetrievalResult{},
			Reasoning: "",
			FactCheck: "No documents retrieved",
			Sources:   []string{},
		}, nil
	}

	reranked := s.rerank(query, retrieved)

	summary, err := s.summarize(ctx, reranked)
	if err != nil {
		queryTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	reasoning, err := s.reason(ctx, query, summary)
	if err != nil {
		queryTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	factCheck, sources, err := s.factCheck(ctx, query, reasoning, reranked)
	if err != nil {
		queryTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	answer, err := s.compose(ctx, query, reranked, reasoning, factCheck)
	if err != nil {
		queryTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	queryTotal.WithLabelValues("ok").Inc()
	return &PipelineResult{
		Answer:    answer,
		Contexts:  reranked,
		Reasoning: reasoning,
		FactCheck: factCheck,
		Sources:   sources,
	}, nil
}

// retrieve 嵌入查询并检索top-K相关分块
func (s *RAGService) retrieve(ctx context.Context, query string) ([]knowledge.RetrievalResult, error) {
	defer observeStage("retrieve")()

	s.logger.Info("retrieval stage", zap.String("query", query), zap.Int("top_k", s.topK))

	queryVector, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.store.Search(ctx, queryVector, s.topK)
}

// rerank 按得分升序稳定排序（距离越小越相关）
func (s *RAGService) rerank(query string, candidates []knowledge.RetrievalResult) []knowledge.RetrievalResult {
	s.logger.Info("rerank stage", zap.String("query", query), zap.Int("candidates", len(candidates)))

	reranked := make([]knowledge.RetrievalResult, len(candidates))
	copy(reranked, candidates)
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score < reranked[j].Score
	})
	return reranked
}

// summarize 将分块压缩为规则、阈值、时限与义务的要点
func (s *RAGService) summarize(ctx context.Context, chunks []knowledge.RetrievalResult) (string, error) {
	defer observeStage("summarize")()

	pieces := make([]string, 0, len(chunks))
	for _, c := range chunks {
		src := c.PolicyID
		if src == "" {
			src = c.Source
		}
		pieces = append(pieces, fmt.Sprintf("[%s] %s", src, c.Text))
	}
	joined := truncateRunes(strings.Join(pieces, "\n"), s.contextBudget)

	prompt := "Summarise the following policy excerpts into key bullet points focused on " +
		"rules, thresholds, timelines, and obligations. Preserve any numbers or limits.\n\n" + joined

	return s.completion.Complete(ctx, []knowledge.ChatMessage{
		{Role: "user", Content: prompt},
	}, 0.2)
}

// reason 以合规官视角基于摘要回答问题
func (s *RAGService) reason(ctx context.Context, query, summary string) (string, error) {
	defer observeStage("reason")()

	prompt := fmt.Sprintf(
		"Question: %s\n\nPolicy summary:\n%s\n\n"+
			"Answer the question as a senior compliance officer. "+
			"Identify which rules apply, which do not, and where there is ambiguity.",
		query, summary)

	return s.completion.Complete(ctx, []knowledge.ChatMessage{
		{Role: "user", Content: prompt},
	}, 0.2)
}

// factCheck 核查推理文本是否都有上下文支撑。
// 返回核查结论与每个分块的来源标识（不去重，与重排结果同序）。
func (s *RAGService) factCheck(ctx context.Context, query, reasoning string, chunks []knowledge.RetrievalResult) (string, []string, error) {
	defer observeStage("fact_check")()

	texts := make([]string, 0, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
		sources = append(sources, c.Source)
	}
	contextBlock := truncateRunes(strings.Join(texts, "\n"), s.contextBudget)

	prompt := fmt.Sprintf(
		"You are a strict compliance fact checker.\n"+
			"User question: %s\n"+
			"Proposed answer: %s\n"+
			"Context from policy documents:\n%s\n\n"+
			"Identify any parts of the answer that are not directly supported by the context. "+
			"If everything is supported, say 'Answer fully supported'. "+
			"Otherwise, list unsupported or speculative claims.",
		query, reasoning, contextBlock)

	verdict, err := s.completion.Complete(ctx, []knowledge.ChatMessage{
		{Role: "user", Content: prompt},
	}, 0.0)
	if err != nil {
		return "", nil, err
	}
	return verdict, sources, nil
}

// compose 为业务读者撰写带引用的最终答案
func (s *RAGService) compose(ctx context.Context, query string, chunks []knowledge.RetrievalResult, reasoning, factCheck string) (string, error) {
	defer observeStage("compose")()

	contextStrs := make([]string, 0, len(chunks))
	for _, c := range chunks {
		src := c.PolicyID
		if src == "" {
			src = c.Source
		}
		contextStrs = append(contextStrs, fmt.Sprintf("[Source: %s] Extract: %s", src, c.Text))
	}
	contextBlock := truncateRunes(strings.Join(contextStrs, "\n\n"), s.contextBudget)

	userPrompt := fmt.Sprintf(
		"Question: %s\n\n"+
			"Relevant policy context:\n%s\n\n"+
			"Internal compliance reasoning:\n%s\n\n"+
			"Fact-check verdict:\n%s\n\n"+
			"Write a clear, concise answer for a business stakeholder. "+
			"Cite policy IDs or titles where relevant.",
		query, contextBlock, reasoning, factCheck)

	return s.completion.Complete(ctx, []knowledge.ChatMessage{
		{Role: "system", Content: ragSystemPrompt},
		{Role: "user", Content: userPrompt},
	}, 0.2)
}

// truncateRunes 按字符数截断字符串
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// observeStage 记录阶段耗时
func observeStage(stage string) func() {
	start := time.Now()
	return func() {
		stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
