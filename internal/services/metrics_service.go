package services

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 流水线与入库指标
var (
	queryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_queries_total",
		Help: "Total number of answered queries, labeled by outcome.",
	}, []string{"outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rag_pipeline_stage_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ingestedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rag_ingested_chunks_total",
		Help: "Total number of chunks added to the vector index.",
	})

	ingestedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_ingested_files_total",
		Help: "Total number of processed source files, labeled by result.",
	}, []string{"result"})
)

// MetricsService 指标服务
type MetricsService struct{}

// NewMetricsService 创建指标服务
func NewMetricsService() *MetricsService {
	return &MetricsService{}
}

// Handler 返回Prometheus指标的HTTP处理器
func (ms *MetricsService) Handler() http.Handler {
	return promhttp.Handler()
}

// ServeHTTP 实现http.Handler接口
func (ms *MetricsService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ms.Handler().ServeHTTP(w, r)
}
