package controllers

import (
	"net/http"

	"github.com/kunledollar/multiagent-policy-compliance-rag/app/bootstrap"
)

// IndexController 向量索引控制器
type IndexController struct {
	BaseController
}

// Stats 返回向量索引的当前规模
func (c *IndexController) Stats() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusInternalServerError, "App instance not available")
		return
	}

	c.JSONSuccess(app.GetVectorStore().Stats())
}

// CacheStats 返回答案缓存的命中率统计
func (c *IndexController) CacheStats() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusInternalServerError, "App instance not available")
		return
	}

	c.JSONSuccess(app.GetAnswerCache().Stats())
}
