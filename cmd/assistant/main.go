package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/kunledollar/multiagent-policy-compliance-rag/app/bootstrap"
	"github.com/kunledollar/multiagent-policy-compliance-rag/app/router"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/config"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	bootstrap.SetGlobalApp(app)

	// 初始化路由
	router.Init()

	// 配置Beego全局设置
	web.BConfig.AppName = "Policy Compliance Assistant"
	web.BConfig.CopyRequestBody = true
	if p, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = p
	} else {
		web.BConfig.Listen.HTTPPort = 8000
	}

	logger.Info("🚀 Starting Policy Compliance Assistant", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
