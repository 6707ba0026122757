package controllers

import (
	"net/http"

	"github.com/kunledollar/multiagent-policy-compliance-rag/app/bootstrap"
)

// EvaluationController 评估控制器
type EvaluationController struct {
	BaseController
}

// Run 执行一轮评估并写出得分文件
func (c *EvaluationController) Run() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusInternalServerError, "App instance not available")
		return
	}

	scores, err := app.GetEvaluationService().Run()
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(scores)
}

// Scores 读取最近一次评估得分
func (c *EvaluationController) Scores() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusInternalServerError, "App instance not available")
		return
	}

	scores, err := app.GetEvaluationService().LoadScores()
	if err != nil {
		c.JSONAppError(err)
		return
	}
	if scores == nil {
		c.JSONError(http.StatusNotFound, "no evaluation scores available")
		return
	}

	c.JSONSuccess(scores)
}
