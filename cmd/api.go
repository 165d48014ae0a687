package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/peerhaven/backend/internal/completion"
	"github.com/peerhaven/backend/internal/config"
	"github.com/peerhaven/backend/internal/db"
	httpserver "github.com/peerhaven/backend/internal/http"
	"github.com/peerhaven/backend/internal/logging"
	"github.com/peerhaven/backend/internal/moderation"
	"github.com/peerhaven/backend/internal/realtime"
	"github.com/peerhaven/backend/internal/repository"
	"github.com/peerhaven/backend/internal/service"
	"github.com/peerhaven/backend/internal/worker"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the HTTP API server",
	RunE:  runAPI,
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := autoMigrate(database); err != nil {
		return err
	}

	ticketRepo := repository.NewTicketRepository(database)
	messageRepo := repository.NewMessageRepository(database)
	memoRepo := repository.NewMemoRepository(database)

	var publisher realtime.Publisher
	rabbitPublisher, err := realtime.NewRabbitPublisher(cfg.MQURL, cfg.MQExchange)
	if err != nil {
		log.Warn("rabbitmq unavailable, running without cross-instance sync", "error", err)
	} else {
		publisher = rabbitPublisher
	}

	hub := realtime.NewHub()
	broadcaster := realtime.NewBroadcaster(hub, publisher, ticketRepo, messageRepo, memoRepo, cfg.MemoCap, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if rabbitPublisher != nil {
		consumer, err := realtime.NewRabbitConsumer(cfg.MQURL, cfg.MQExchange, cfg.MQQueue)
		if err != nil {
			log.Warn("rabbitmq consumer unavailable", "error", err)
		} else {
			defer consumer.Close()
			err := consumer.Consume(func(d amqp091.Delivery) {
				broadcaster.HandleRemote(ctx, d.RoutingKey)
				_ = d.Ack(false)
			})
			if err != nil {
				log.Warn("rabbitmq consume failed", "error", err)
			}
		}
	}

	var completer service.Completer
	if cfg.CompletionURL != "" {
		completer = completion.NewClient(cfg.CompletionURL, cfg.CompletionAPIKey)
	} else {
		log.Warn("COMPLETION_URL not set, AI features degrade to fallback responses")
	}
	var reviewer moderation.Completer
	if completer != nil {
		reviewer = completer
	}
	pipeline := moderation.NewPipeline(reviewer, log)

	matching := service.NewMatchingService(ticketRepo, broadcaster, log)
	chat := service.NewChatService(messageRepo, pipeline, completer, broadcaster, log)
	memos := service.NewMemoService(memoRepo, pipeline, broadcaster, cfg.MemoCap, log)

	sweeper := worker.NewRetentionWorker(memoRepo, broadcaster, cfg.MemoSweepInterval, cfg.MemoCap, log)
	go sweeper.Run(ctx)

	apiServer := httpserver.NewServer(ticketRepo, matching, chat, memos, hub)
	srv := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: apiServer.Engine,
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown error", "error", err)
	}
	if rabbitPublisher != nil {
		_ = rabbitPublisher.Close()
	}
	log.Info("bye")
	return nil
}

func init() {
	if mode := os.Getenv("GIN_MODE"); mode == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
