package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/fankam/depanneo/internal/profile"
	"github.com/fankam/depanneo/plugin/extractor"
	"github.com/fankam/depanneo/plugin/llm"
	llmrouter "github.com/fankam/depanneo/plugin/llm/router"
	"github.com/fankam/depanneo/server"
	"github.com/fankam/depanneo/server/events"
	apiv1 "github.com/fankam/depanneo/server/router/api/v1"
	"github.com/fankam/depanneo/server/runner/cleanup"
	"github.com/fankam/depanneo/server/service/dialog"
	"github.com/fankam/depanneo/server/service/matching"
	"github.com/fankam/depanneo/server/service/notify"
	"github.com/fankam/depanneo/store"
	"github.com/fankam/depanneo/store/db/sqlite"
)

// Version is set via ldflags at build time.
var Version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depanneo",
		Short: "Depanneo conversational dispatch engine",
		Long:  "Depanneo turns chat messages into dispatched service requests for Douala repair providers.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	cmd.Flags().String("mode", "demo", `server mode: "demo", "dev" or "prod"`)
	cmd.Flags().String("addr", "", "binding address")
	cmd.Flags().Int("port", 8081, "binding port")
	cmd.Flags().String("data", ".", "data directory")

	for _, flag := range []string{"mode", "addr", "port", "data"} {
		if err := viper.BindPFlag(flag, cmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("depanneo")
	viper.AutomaticEnv()

	return cmd
}

func serve(ctx context.Context) error {
	p := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Version: Version,
	}
	p.FromEnv()
	if p.Data != "" {
		if err := os.MkdirAll(p.Data, 0o750); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogger(p)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := sqlite.NewDB(p)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	st := store.New(driver, p)
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	bus := events.NewEventBus()

	var backend llm.Backend
	if backends := llm.NewConfigFromProfile(p).Backends(); len(backends) > 0 {
		backend = llmrouter.NewService(llmrouter.Config{Backends: backends})
	} else {
		slog.Warn("no language-model backend configured, extraction runs on rules only")
	}

	matcher := matching.NewMatcher(st, matching.Weights{})

	var secondary notify.Channel
	if p.SMSGatewayURL != "" {
		secondary = notify.NewSMSChannel(p.SMSGatewayURL, p.SMSGatewayToken)
	}
	registry := notify.NewChannelRegistry(notify.NewChatChannel(p.ChatGatewayURL, p.ChatGatewayToken), secondary)
	dispatcher := notify.NewDispatcher(notify.Config{
		Store:        st,
		Registry:     registry,
		Bus:          bus,
		Matcher:      matcher,
		RetryBase:    p.NotifyRetryBase,
		MaxRetries:   p.NotifyMaxRetries,
		FallbackTopN: p.NotifyFallbackTopN,
	})

	executor := dialog.NewExecutor(st, matcher, dispatcher, bus)
	engine := dialog.NewEngine(st, extractor.NewService(backend), executor, p, slog.Default())

	api := apiv1.NewAPIV1Service(p, st, engine, bus)
	srv := server.NewServer(p, st, api)

	runner := cleanup.NewRunner(st, dispatcher, api.RateLimiter(), p.SessionInactivity)
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cleanup runner: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if p.SlackWebhookURL != "" {
		notifier := events.NewSlackNotifier(p.SlackWebhookURL)
		g.Go(func() error {
			notifier.Run(gctx, bus)
			return nil
		})
	}
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		srv.Shutdown(context.Background())
		runner.Stop()
		dispatcher.Wait()
		return nil
	})

	return g.Wait()
}

func setupLogger(p *profile.Profile) {
	var handler slog.Handler
	if p.Mode == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
