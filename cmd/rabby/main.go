package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fluffle-labs/rabby/internal/bot"
	"github.com/fluffle-labs/rabby/internal/config"
	"github.com/fluffle-labs/rabby/internal/control"
	"github.com/fluffle-labs/rabby/internal/db"
	"github.com/fluffle-labs/rabby/internal/history"
	"github.com/fluffle-labs/rabby/internal/openai"
	"github.com/fluffle-labs/rabby/internal/router"
	"github.com/fluffle-labs/rabby/internal/session"
	"github.com/fluffle-labs/rabby/internal/telegram"
	"github.com/fluffle-labs/rabby/internal/voice"
)

// chatGateway adapts the OpenAI client to the session completion boundary.
type chatGateway struct {
	client *openai.Client
}

func (g *chatGateway) Complete(ctx context.Context, model string, turns []history.Turn) (string, error) {
	messages := make([]openai.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.Message{Role: t.Role, Content: t.Content})
	}
	return g.client.ChatCompletion(ctx, model, messages)
}

func main() {
	cfg, err := config.LoadBotConfig()
	if err != nil {
		log.Fatalf("[rabby] %v", err)
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("[rabby] %v", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		log.Fatalf("[rabby] failed to init schema: %v", err)
	}

	var processParent *int64
	processEventID, err := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{
		"role":          "bot",
		"pid":           os.Getpid(),
		"fast_model":    cfg.FastModel,
		"capable_model": cfg.CapableModel,
	})
	if err != nil {
		log.Printf("[rabby] failed to log process.started: %v", err)
	} else {
		processParent = &processEventID
	}

	tg := telegram.NewClient(cfg.TelegramAPIBase, cfg.TelegramFileAPIBase, 90*time.Second)
	ai := openai.NewClient(
		cfg.OpenAIAPIKey,
		cfg.OpenAIChatCompURL,
		cfg.OpenAITranscribeURL,
		time.Duration(cfg.GatewayTimeoutSeconds)*time.Second,
	)

	store := &history.Store{DB: database}
	selector := &router.Selector{
		WordThreshold: cfg.RouterWordThreshold,
		Fast:          cfg.FastModel,
		Capable:       cfg.CapableModel,
	}

	manager := session.NewManager(store, &chatGateway{client: ai}, selector, cfg.SystemPrompt)
	manager.HistoryWindow = cfg.HistoryWindow
	manager.Policy = control.Policy{
		CallTimeout: time.Duration(cfg.GatewayTimeoutSeconds) * time.Second,
		MaxRetries:  cfg.GatewayMaxRetries,
	}
	manager.EventDB = database

	dispatcher := &bot.Dispatcher{
		Transport:            tg,
		Session:              manager,
		Voice:                voice.NewAdapter(tg, ai, cfg.TranscribeModel),
		Circuit:              control.NewCircuitBreaker(cfg.CircuitThreshold, time.Duration(cfg.CircuitCooldownSeconds)*time.Second),
		EventDB:              database,
		PollTimeout:          cfg.Timeout,
		SleepSeconds:         cfg.SleepSeconds,
		DropPending:          cfg.DropPending,
		PendingWindowSeconds: cfg.PendingWindowSeconds,
		PendingMaxMessages:   cfg.PendingMaxMessages,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[rabby] started pid=%d db=%s", os.Getpid(), cfg.DBPath)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})

	err = g.Wait()

	if _, logErr := db.LogEvent(database, processParent, db.EventProcessStopped, map[string]any{
		"pid": os.Getpid(),
	}); logErr != nil {
		log.Printf("[rabby] failed to log process.stopped: %v", logErr)
	}

	if err != nil {
		log.Fatalf("[rabby] %v", err)
	}
	log.Printf("[rabby] stopped")
}
