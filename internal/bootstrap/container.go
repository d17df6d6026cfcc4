package bootstrap

import (
	"log"

	"clinedit-collab/internal/config"
	"clinedit-collab/internal/controller"
	"clinedit-collab/internal/pkg/logger"
	"clinedit-collab/internal/repository/memory"
	"clinedit-collab/internal/service"
	"clinedit-collab/internal/websocket"

	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	AccessController controller.IAccessController

	// WebSocket relay
	WebSocketHub   *websocket.Hub
	CommentService service.ICommentService

	Logger logger.ILogger
}

func NewContainer(cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)

	// Redis is optional: a single relay instance runs fine without it.
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Invalid REDIS_URL, cross-instance fanout disabled: %v", err)
		} else {
			rdb = redis.NewClient(opts)
		}
	}

	hub := websocket.NewHub(rdb, wsLogger)
	commentService := service.NewCommentService(cfg.Auth.JwtSecret, wsLogger)

	shareTokens := memory.NewShareTokenRepository()
	accessService := service.NewAccessService(shareTokens)

	return &Container{
		AccessController: controller.NewAccessController(accessService),
		WebSocketHub:     hub,
		CommentService:   commentService,
		Logger:           sysLogger,
	}
}
