package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobgate-go/internal/api/handler"
	"jobgate-go/internal/api/router"
	"jobgate-go/internal/config"
	appCoreLogger "jobgate-go/internal/logger"
	"jobgate-go/internal/outbox"
	"jobgate-go/internal/service"
	"jobgate-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"
)

var (
	version     = "1.0.0"      //nolint:gochecknoglobals
	serviceName = "jobgate-go" //nolint:gochecknoglobals
)

// @title JobGate CV Matching API
// @version 1.0
// @description CV请求审核、匹配打分与交付服务
// @BasePath /api/v1
func main() {
	var configPath string
	var sampleConfigPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.StringVar(&sampleConfigPath, "sample", "", "Write a sample config file to the given path and exit")
	pflag.Parse()

	if sampleConfigPath != "" {
		if err := config.CreateSampleConfig(sampleConfigPath); err != nil {
			log.Fatalf("生成示例配置失败: %v", err)
		}
		log.Printf("示例配置已写入: %s", sampleConfigPath)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg)
	glog.Infof("%s v%s 配置加载成功", serviceName, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 初始化并启动消息中继，将outbox事件搬运到RabbitMQ
	var messageRelay *outbox.MessageRelay
	if storageManager.RabbitMQ != nil {
		relayLogger := log.New(appCoreLogger.Logger, "[MessageRelay] ", log.LstdFlags|log.Lshortfile)
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, &cfg.RabbitMQ, relayLogger)
		messageRelay.Start()
		glog.Info("消息中继服务已启动")
	} else {
		glog.Warn("RabbitMQ不可用，outbox事件将积压直到消息中继可以启动")
	}

	requestHandler, matchingHandler, featureHandler, err := initializeHandlers(cfg, storageManager)
	if err != nil {
		glog.Fatalf("初始化业务处理器失败: %v", err)
	}
	glog.Info("业务处理器初始化成功")

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, cfg, requestHandler, matchingHandler, featureHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	if messageRelay != nil {
		messageRelay.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}

	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog并将Hertz的hlog桥接到同一输出
func initLogger(cfg *config.Config) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	hertzCompatibleLogger := hertzadapter.From(appCoreLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
	glog.SetLevel(glog.LevelInfo)
}

func initializeHandlers(cfg *config.Config, storageManager *storage.Storage) (*handler.CVRequestHandler, *handler.MatchingHandler, *handler.FeatureHandler, error) {
	requestSvc, err := service.NewCVRequestService(cfg, storageManager, &appCoreLogger.Logger)
	if err != nil {
		return nil, nil, nil, err
	}
	matchingSvc, err := service.NewMatchingService(cfg, storageManager, &appCoreLogger.Logger)
	if err != nil {
		return nil, nil, nil, err
	}
	featureSvc, err := service.NewFeatureService(storageManager, &appCoreLogger.Logger)
	if err != nil {
		return nil, nil, nil, err
	}

	return handler.NewCVRequestHandler(requestSvc),
		handler.NewMatchingHandler(matchingSvc),
		handler.NewFeatureHandler(featureSvc),
		nil
}
