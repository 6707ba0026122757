package controllers

import (
	"github.com/kunledollar/multiagent-policy-compliance-rag/app/bootstrap"
)

// RootController 根控制器
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]string{"message": "Policy Compliance Assistant API"})
}

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
}

func (c *HealthController) Health() {
	payload := map[string]interface{}{"status": "healthy"}

	if app := bootstrap.GetApp(); app != nil && app.GetVectorStore() != nil {
		stats := app.GetVectorStore().Stats()
		payload["num_vectors"] = stats.NumVectors
		payload["vector_dim"] = stats.VectorDim
	}

	c.JSONSuccess(payload)
}
