package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"PChat/global"
	"PChat/logger"
	mid "PChat/middleware"
	chathandler "PChat/module/chat"
	chatmodel "PChat/module/chat/model"
	chatsrv "PChat/module/chat/service"
	uploadhandler "PChat/module/upload"
	userhandler "PChat/module/user"
	usermodel "PChat/module/user/model"
	"PChat/service/mgo"
	"PChat/service/natsx"
	"PChat/service/relay"
	redisSrv "PChat/service/storage/redis"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	global.ConfigIds()
	cfg := global.Global
	nodeID := "node-" + strconv.FormatInt(cfg.NodeID, 10)

	if err := redisSrv.InitRedis(redisSrv.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	}); err != nil {
		// presence and revocation degrade gracefully without redis
		logger.Warnf("[main] redis unavailable: %v", err)
	}
	defer func() { _ = redisSrv.CloseRedis() }()

	mgo.StartAsync(ctx, &mgo.Config{
		Uri:      cfg.MongoURI,
		Database: cfg.MongoDB,
		Username: cfg.MongoUser,
		Password: cfg.MongoPass,
	})
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mgo.WaitReady(waitCtx); err != nil {
		logger.Errorf("[main] mongo not ready: %v", err)
		return
	}
	ensureIndexes(ctx)

	hub := relay.NewHub(nodeID, relay.MembershipFunc(chatsrv.IsMember))

	if cfg.NatsURL != "" {
		mgr, err := natsx.NewManager(natsx.Config{
			Servers: []string{cfg.NatsURL},
			Name:    "chat-relay-" + nodeID,
		})
		if err != nil {
			logger.Errorf("[main] nats connect: %v", err)
			return
		}
		defer func() { _ = mgr.Close() }()
		if _, err := relay.NewBridge(hub, mgr); err != nil {
			logger.Errorf("[main] relay bridge: %v", err)
			return
		}
	}

	r := gin.New()
	r.Use(gin.Recovery(), mid.Origin())
	registerRoutes(r, hub)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		logger.Infof("[main] listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[main] serve: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}

func registerRoutes(r *gin.Engine, hub *relay.Hub) {
	chatH := chathandler.NewHandler(hub)
	wsSrv := relay.NewServer(hub, global.JwtOptions())

	mid.POST(r, "/api/auth/register", userhandler.HandlerRegister, mid.RouteOpt{})
	mid.POST(r, "/api/auth/login", userhandler.HandlerLogin, mid.RouteOpt{})

	auth := mid.RouteOpt{IsAuth: true}
	mid.POST(r, "/api/auth/logout", userhandler.HandlerLogout, auth)
	mid.GET(r, "/api/auth/token", userhandler.HandlerToken, auth)
	mid.GET(r, "/api/users", userhandler.HandlerList, auth)

	mid.POST(r, "/api/conversations", chatH.HandlerCreateConversation, auth)
	mid.GET(r, "/api/conversations", chatH.HandlerListConversations, auth)
	mid.GET(r, "/api/conversations/:id", chatH.HandlerGetConversation, auth)
	mid.GET(r, "/api/conversations/:id/messages", chatH.HandlerListMessages, auth)
	mid.POST(r, "/api/conversations/:id/messages", chatH.HandlerSendMessage, auth)

	mid.POST(r, "/api/upload", uploadhandler.HandlerUpload, auth)
	mid.GET(r, "/uploads/:name", uploadhandler.HandlerServe, auth)

	// the websocket authenticates in-band (query token or first auth frame)
	r.GET("/ws", wsSrv.HandleWS)
}

func ensureIndexes(ctx context.Context) {
	idxCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for name, fn := range map[string]func(context.Context) error{
		"user":         usermodel.EnsureIndexes,
		"conversation": chatmodel.EnsureConversationIndexes,
		"message":      chatmodel.EnsureMessageIndexes,
	} {
		if err := fn(idxCtx); err != nil {
			logger.Warnf("[main] ensure %s indexes: %v", name, err)
		}
	}
}
