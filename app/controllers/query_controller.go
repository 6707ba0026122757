package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/kunledollar/multiagent-policy-compliance-rag/app/bootstrap"
)

var validate = validator.New()

// QueryController 合规问答控制器
type QueryController struct {
	BaseController
}

// QueryRequest 问答请求体
type QueryRequest struct {
	Query string `json:"query" validate:"required"`
}

// Query 执行一次完整的问答流水线
func (c *QueryController) Query() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusInternalServerError, "App instance not available")
		return
	}

	var req QueryRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSONError(http.StatusBadRequest, "query is required")
		return
	}

	ctx := c.Ctx.Request.Context()

	// 先查答案缓存
	if cached, ok := app.GetAnswerCache().Get(ctx, req.Query); ok {
		c.JSONSuccess(cached)
		return
	}

	result, err := app.GetRAGService().AnswerQuery(ctx, req.Query)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	app.GetAnswerCache().Set(ctx, req.Query, result)
	c.JSONSuccess(result)
}
