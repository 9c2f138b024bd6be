package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course_checkout/internal/pkg/config"
	"course_checkout/internal/pkg/middleware"
	"course_checkout/internal/pkg/orchestrator"
	"course_checkout/internal/pkg/registry"
	"course_checkout/pkg/database"
	"course_checkout/pkg/logger"

	// 模块通过 init 自注册
	_ "course_checkout/internal/domain/checkout"
	_ "course_checkout/internal/domain/common"
	_ "course_checkout/internal/domain/discount"
	_ "course_checkout/internal/domain/settlement"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 基础设施
	config.LoadConfig()
	logger.Init(config.GlobalConfig.App.Debug)
	defer logger.Sync()

	db := database.InitDatabase()
	rdb := database.InitRedis()

	// 2. HTTP 引擎与全局中间件
	gin.SetMode(config.GlobalConfig.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(cors.Default())

	// 3. 模块初始化
	moduleCtx := &registry.ModuleContext{
		DB:     db,
		Redis:  rdb,
		Router: r,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		log.Fatalf("Failed to init modules: %v", err)
	}

	// 4. 启动与优雅停机
	srv := &http.Server{
		Addr:    ":" + config.GlobalConfig.Server.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server listening on :%s", config.GlobalConfig.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}

	// 已派发的清算后任务批必须落地，进程不能带着未刷出的 IO 退出
	if orchestrator.Global != nil {
		orchestrator.Global.Wait()
	}
	log.Println("Server exited")
}
