// Command yatrabot runs the Jagriti Yatra community WhatsApp bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/api"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/conversation"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/followup"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/genai"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/intent"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/lockfile"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/messaging"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/ratelimit"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/recovery"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/store"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/twiliowhatsapp"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/whatsapp"
)

const (
	outboxPollInterval  = 2 * time.Second
	jobPollInterval     = 30 * time.Second
	maintenanceInterval = time.Hour
	limiterEvictEvery   = 10 * time.Minute
	cacheJanitorEvery   = 10 * time.Minute
)

func main() {
	cfg := loadEnvironmentConfig()
	initializeLogger(cfg.LogLevel)

	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], cfg)
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		slog.Error("yatrabot exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("yatrabot exited")
}

// run wires the components and blocks until ctx is cancelled or one of the
// long-running loops fails.
func run(ctx context.Context, f Flags) error {
	lock, err := lockfile.AcquireLock(*f.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := openStore(buildStoreOptions(f))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	limiter := ratelimit.NewLimiter(ratelimit.WithDailySearchLimit(*f.dailySearchLimit))
	orchOpts := []conversation.Option{
		conversation.WithAdmitter(limiter),
		conversation.WithSessionTTL(*f.sessionTTL),
	}
	if *f.aiClassifier {
		classifier, err := newAIClassifier(f)
		if err != nil {
			return err
		}
		orchOpts = append(orchOpts, conversation.WithClassifier(classifier))
	}
	orch := conversation.NewOrchestrator(st, orchOpts...)

	svc, err := newTransport(ctx, f)
	if err != nil {
		return err
	}

	sender := store.NewOutboxSender(st, func(ctx context.Context, msg store.OutboxMessage) error {
		return svc.SendMessage(ctx, msg.RecipientID, msg.Body)
	}, outboxPollInterval)
	runner := store.NewJobRunner(st, jobPollInterval)
	maintenance := store.NewMaintenance(st, maintenanceInterval)
	maintenance.Register(runner)

	if err := recovery.NewStartupManager(st, sender, runner, maintenance).RecoverAll(ctx); err != nil {
		// Recovery is best effort; the loops below retry on their own.
		slog.Warn("run: startup recovery incomplete", "error", err)
	}

	handler := messaging.NewHandler(svc, orch, st, messaging.WithNotifier(sender))
	apiOpts := buildAPIOptions(f)
	if tw, ok := svc.(*messaging.TwilioService); ok {
		apiOpts = append(apiOpts, api.WithTwilioWebhook(tw.WebhookHandler))
	}
	server := api.NewServer(orch, st, apiOpts...)
	if err := server.Validate(); err != nil {
		return err
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { sender.Run(gctx); return nil })
	g.Go(func() error { runner.Run(gctx); return nil })
	g.Go(func() error { limiter.Run(gctx, limiterEvictEvery); return nil })
	g.Go(func() error { orch.RunJanitor(gctx, cacheJanitorEvery); return nil })
	g.Go(func() error { handler.Run(gctx); return nil })
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		return svc.Stop()
	})

	slog.Info("run: yatrabot started", "transport", *f.transport, "apiAddr", *f.apiAddr, "aiClassifier", *f.aiClassifier)
	return g.Wait()
}

func openStore(opts []store.Option) (store.Store, error) {
	if len(opts) == 0 {
		slog.Warn("openStore: using in-memory store, data is lost on restart")
		return store.NewInMemoryStore(), nil
	}
	var cfg store.Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		return store.NewPostgresStore(opts...)
	}
	return store.NewSQLiteStore(opts...)
}

func newAIClassifier(f Flags) (*intent.Classifier, error) {
	client, err := genai.NewClient(buildGenAIOptions(f)...)
	if err != nil {
		return nil, fmt.Errorf("ai classifier: %w", err)
	}
	return intent.NewClassifier(
		intent.WithAI(client),
		intent.WithMinAIConfidence(*f.aiMinConfidence),
		intent.WithResolver(followup.NewResolver()),
	), nil
}

func newTransport(ctx context.Context, f Flags) (messaging.Service, error) {
	switch *f.transport {
	case TransportWhatsApp:
		client, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(f)...)
		if err != nil {
			return nil, fmt.Errorf("whatsapp transport: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	case TransportTwilio:
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, fmt.Errorf("twilio transport: %w", err)
		}
		var opts []messaging.TwilioServiceOption
		if *f.twilioWebhookURL != "" {
			opts = append(opts, messaging.WithSignatureValidation(
				twiliowhatsapp.NewSignatureValidator(os.Getenv("TWILIO_AUTH_TOKEN")), *f.twilioWebhookURL))
		}
		return messaging.NewTwilioService(client, opts...), nil
	case TransportNone:
		return messaging.NewLogService(), nil
	default:
		return nil, errors.New("unknown transport " + *f.transport)
	}
}
