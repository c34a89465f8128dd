package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/newbialywhodis/barcapl/config"
	"github.com/newbialywhodis/barcapl/internal/api/moderation"
	"github.com/newbialywhodis/barcapl/internal/api/rambla"
	"github.com/newbialywhodis/barcapl/internal/api/user"
	"github.com/newbialywhodis/barcapl/internal/middleware"
	"github.com/newbialywhodis/barcapl/internal/realtime"
	"github.com/newbialywhodis/barcapl/internal/repository/mysql"
	"github.com/newbialywhodis/barcapl/internal/service"
	"github.com/newbialywhodis/barcapl/internal/storage"
	"github.com/newbialywhodis/barcapl/internal/util"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			util.Logger.Error("程序发生严重错误", zap.Any("error", r))
		}
	}()

	// 初始化配置
	config.Init()

	// 初始化日志
	util.InitLogger(config.AppConfig.LogLevel)
	defer util.Logger.Sync()

	util.Logger.Info("La Rambla 启动")

	// 设置数据库连接字符串
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.AppConfig.DBUser,
		config.AppConfig.DBPassword,
		config.AppConfig.DBHost,
		config.AppConfig.DBPort,
		config.AppConfig.DBName)

	// 连接数据库
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		util.Logger.Fatal("连接数据库失败", zap.Error(err))
	}
	defer db.Close()

	// 测试数据库连接
	if err := db.Ping(); err != nil {
		util.Logger.Fatal("数据库连接测试失败", zap.Error(err))
	}
	util.Logger.Info("数据库连接成功")

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 注册自定义验证器
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("nick", util.ValidateNick)
	}

	// 初始化存储后端
	fileStorage, err := storage.NewFromConfig()
	if err != nil {
		util.Logger.Fatal("初始化存储后端失败", zap.Error(err))
	}

	// 变更通知：存储层写入后发布，信息流服务订阅
	broker := realtime.NewBroker()

	// 初始化存储库、服务和处理器
	userRepo := mysql.NewUserRepository(db, broker)
	postRepo := mysql.NewPostRepository(db, broker)
	likeRepo := mysql.NewLikeRepository(db)

	feedService := service.NewFeedService(postRepo, likeRepo, userRepo, broker)
	userService := service.NewUserService(userRepo, feedService)
	statsService := service.NewStatsService(userRepo, postRepo)

	authHandler := user.NewAuthHandler(userService)
	profileHandler := user.NewProfileHandler(userService, fileStorage)
	feedHandler := rambla.NewFeedHandler(feedService, userService)
	moderationHandler := moderation.NewModerationHandler(userService, statsService)

	// 启动时先做一次全量刷新填充视图，失败只记录日志，
	// 后台循环会按周期重试
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := feedService.Refresh(startupCtx); err != nil {
		util.Logger.Error("启动时刷新信息流失败", zap.Error(err))
	}
	startupCancel()

	// 启动后台同步循环
	feedService.Run(time.Duration(config.AppConfig.FeedRefreshInterval) * time.Second)

	// 初始化错误监控
	errorMonitor := middleware.NewErrorMonitor()

	// 设置 Gin 路由
	r := gin.Default()

	// 添加中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.ErrorMonitorMiddleware(errorMonitor))

	// 配置 CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{config.AppConfig.FrontendURL}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Authorization",
	}
	corsConfig.ExposeHeaders = []string{
		"Content-Length",
		"Content-Type",
		"Access-Control-Allow-Origin",
	}
	r.Use(cors.New(corsConfig))

	// 静态文件的 CORS 处理
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/uploads/") {
			c.Header("Access-Control-Allow-Origin", config.AppConfig.FrontendURL)
			c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type")

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(200)
				return
			}
		}
		c.Next()
	})

	// 配置静态文件服务
	r.Static("/uploads", config.AppConfig.LocalStoragePath)

	// 定义 API 路由
	api := r.Group("/api")
	{
		// 认证相关路由
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)
		api.GET("/verify-email", authHandler.VerifyEmail)

		// 信息流和个人页对游客开放，登录用户拿到查看者相关字段
		api.GET("/feed", middleware.OptionalAuthMiddleware(userService), feedHandler.GetFeed)
		api.GET("/feed/unread", feedHandler.GetUnread)
		api.GET("/users/:nick", feedHandler.GetUserProfile)

		// 需要认证的路由
		authorized := api.Group("/")
		authorized.Use(middleware.AuthMiddleware(userService))
		{
			authorized.POST("/logout", authHandler.Logout)
			authorized.POST("/refresh-token", authHandler.RefreshToken)

			authorized.GET("/profile", profileHandler.GetProfile)
			authorized.PUT("/profile", profileHandler.UpdateProfile)
			authorized.POST("/profile/avatar", profileHandler.UploadAvatar)

			authorized.POST("/feed/refresh", feedHandler.RefreshFeed)
			authorized.POST("/posts", feedHandler.CreatePost)
			authorized.POST("/posts/:id/like", feedHandler.ToggleLike)
		}

		// 版主路由组
		mod := api.Group("/moderation")
		mod.Use(middleware.AuthMiddleware(userService), middleware.ModeratorMiddleware(userService))
		{
			mod.PUT("/users/:id/role", moderationHandler.UpdateUserRole)
			mod.GET("/stats", moderationHandler.GetStats)
		}
	}

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	// 在一个新的 goroutine 中启动服务器
	go func() {
		util.Logger.Info("服务器正在启动，监听端口 :8080")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Logger.Fatal("启动服务器失败", zap.Error(err))
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	util.Logger.Info("正在关闭服务器...")

	// 先停掉后台同步循环，再关闭 HTTP 服务器
	feedService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		util.Logger.Fatal("服务器强制关闭", zap.Error(err))
	}

	util.Logger.Info("服务器已优雅关闭")
}
