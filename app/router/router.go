package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/kunledollar/multiagent-policy-compliance-rag/app/controllers"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")

	// 入库与问答路由
	web.Router("/api/ingest", &controllers.IngestController{}, "post:Ingest")
	web.Router("/api/query", &controllers.QueryController{}, "post:Query")

	// 索引与缓存状态路由
	indexController := &controllers.IndexController{}
	web.Router("/api/index/stats", indexController, "get:Stats")
	web.Router("/api/cache/stats", indexController, "get:CacheStats")

	// 评估路由
	evaluationController := &controllers.EvaluationController{}
	web.Router("/api/evaluation/run", evaluationController, "post:Run")
	web.Router("/api/evaluation/scores", evaluationController, "get:Scores")

	// Prometheus指标路由
	web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")
}
