package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/kunledollar/multiagent-policy-compliance-rag/app/bootstrap"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/config"
)

// IngestController 文档入库控制器
type IngestController struct {
	BaseController
}

// IngestRequest 入库请求体。目录缺省时使用配置的数据目录。
type IngestRequest struct {
	Directory string `json:"directory"`
}

// Ingest 入库指定目录下的策略文档
func (c *IngestController) Ingest() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusInternalServerError, "App instance not available")
		return
	}

	var req IngestRequest
	if len(c.Ctx.Input.RequestBody) > 0 {
		if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
			c.JSONError(http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
	}
	if req.Directory == "" {
		req.Directory = config.AppConfig.Knowledge.DataDir
	}

	report, err := app.GetDocumentService().IngestDirectory(c.Ctx.Request.Context(), req.Directory)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(report)
}
