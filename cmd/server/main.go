package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neurosupport/carechat/internal/ai"
	"github.com/neurosupport/carechat/internal/booking"
	"github.com/neurosupport/carechat/internal/chat"
	"github.com/neurosupport/carechat/internal/config"
	"github.com/neurosupport/carechat/internal/db"
	"github.com/neurosupport/carechat/internal/emotion"
	"github.com/neurosupport/carechat/internal/httpapi"
	"github.com/neurosupport/carechat/internal/httpapi/handlers"
	"github.com/neurosupport/carechat/internal/observability"
	"github.com/neurosupport/carechat/internal/store/rabbitmq"
	"github.com/neurosupport/carechat/internal/store/redisstore"
	"github.com/neurosupport/carechat/internal/ws"
)

// bookerAdapter satisfies chat.Booker with the appointment service.
type bookerAdapter struct {
	svc *booking.Service
}

func (b bookerAdapter) Book(ctx context.Context, sessionID, visitorID string) (chat.BookingResult, error) {
	appt, err := b.svc.Book(ctx, sessionID, visitorID)
	if err != nil {
		return chat.BookingResult{}, err
	}
	return chat.BookingResult{AppointmentID: appt.ID, StartTime: appt.StartTime}, nil
}

func main() {
	cfg := config.Load()
	logger := observability.Logger()

	gdb := db.Connect(cfg.DBDSN)
	if err := gdb.AutoMigrate(
		&chat.Visitor{},
		&chat.Session{},
		&chat.Message{},
		&chat.EscalationRecord{},
		&booking.Appointment{},
		&booking.TherapistNote{},
	); err != nil {
		log.Fatalf("automigrate: %v", err)
	}

	presence := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	{
		pctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := presence.Ping(pctx); err != nil {
			logger.Warn("redis unreachable, presence degraded", "err", err)
		}
		cancel()
	}

	var events chat.EventPublisher
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		logger.Warn("rabbit unreachable, escalation events disabled", "err", err)
	} else {
		events = pub
		defer pub.Close()
	}

	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		if model == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})

	var classifier emotion.Classifier
	if cfg.EmotionURL != "" {
		classifier = emotion.Fallback{Primary: emotion.NewHTTPClassifier(cfg.EmotionURL, cfg.EmotionTimeout)}
	} else {
		classifier = emotion.RuleBased{}
	}

	repo := chat.NewRepo(gdb)
	registry := ws.NewRegistry(cfg.TherapistJoinText)
	bookingSvc := booking.NewService(gdb)
	evaluator := chat.NewEvaluator(
		chat.NewKeywordIntent(cfg.IntentKeywords),
		chat.EvaluatorConfig{
			NegativeEmotions:       cfg.NegativeEmotions,
			RepetitionThreshold:    cfg.RepetitionThreshold,
			DistressThreshold:      cfg.DistressThreshold,
			LowConfidenceThreshold: cfg.LowConfidenceThreshold,
			LowConfidenceCount:     cfg.LowConfidenceCount,
		},
	)

	svc := chat.NewService(repo, registry, reg, classifier, bookerAdapter{svc: bookingSvc}, events, evaluator, chat.Options{
		WindowSize:       cfg.WindowSize,
		Sentinel:         cfg.Sentinel,
		AITimeout:        cfg.AITimeout,
		FallbackText:     cfg.AIFallback,
		AcceptTokens:     cfg.AcceptTokens,
		DeclineTokens:    cfg.DeclineTokens,
		SuggestionIntent: cfg.SuggestionIntent,
		SuggestionHealth: cfg.SuggestionHealth,
		AcceptedText:     cfg.AcceptedText,
		DeclinedText:     cfg.DeclinedText,
		BookingErrorText: cfg.BookingErrorText,
		DefaultProvider:  cfg.AIProvider,
		DefaultModel:     cfg.OllamaModel,
	}, logger)

	h := handlers.NewHandler(cfg, svc, repo, bookingSvc, presence)
	router := httpapi.NewRouter(h)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server started", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("server shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
