package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/minigame-sdk/internal/config"
	"github.com/DoyleJ11/minigame-sdk/internal/ws"
	"github.com/DoyleJ11/minigame-sdk/pkg/minigame"
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type joinFlags struct {
	envFiles    []string
	baseURL     string
	minigameID  string
	accessCode  string
	name        string
	players     int
	encoding    string
	autoBegin   bool
	debug       bool
	metricsAddr string
}

func joinCmd() *cobra.Command {
	var f joinFlags

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a testing room and log room events",
		Long: `Join a testing room and log room events until interrupted.

Examples:
  roomclient join --minigame-id=abc --access-code=xyz
  roomclient join --encoding=Json --players=3 --debug
  roomclient join --metrics-addr=:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runJoin(ctx, cfg)
		},
	}

	cmd.Flags().StringSliceVar(&f.envFiles, "env-file", []string{".env"}, "Env files to load when present")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Matchmaking base URL")
	cmd.Flags().StringVar(&f.minigameID, "minigame-id", "", "Minigame id")
	cmd.Flags().StringVar(&f.accessCode, "access-code", "", "Testing access code")
	cmd.Flags().StringVar(&f.name, "name", "", "Display name (default Guest_XXXXXX)")
	cmd.Flags().IntVarP(&f.players, "players", "p", 0, "Players to start, host included")
	cmd.Flags().StringVarP(&f.encoding, "encoding", "e", "", "Wire encoding: Oppack or Json")
	cmd.Flags().BoolVar(&f.autoBegin, "auto-begin", true, "Start the minigame when joining as host")
	cmd.Flags().BoolVarP(&f.debug, "debug", "d", false, "Development logging")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// loadConfig reads the environment, then applies the flags the user set.
func loadConfig(cmd *cobra.Command, f joinFlags) (config.Config, error) {
	cfg, err := config.Parse(f.envFiles...)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if flags.Changed("minigame-id") {
		cfg.MinigameID = f.minigameID
	}
	if flags.Changed("access-code") {
		cfg.TestingAccessCode = f.accessCode
	}
	if flags.Changed("name") {
		cfg.DisplayName = f.name
	}
	if flags.Changed("players") {
		cfg.PlayersToStart = f.players
	}
	if flags.Changed("encoding") {
		cfg.Encoding = f.encoding
	}
	if flags.Changed("auto-begin") {
		cfg.AutoBegin = f.autoBegin
	}
	if flags.Changed("debug") {
		cfg.Debug = f.debug
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if err := cfg.Finish(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runJoin(ctx context.Context, cfg config.Config) error {
	log, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	sdk, err := minigame.New(minigame.FromEnv(cfg),
		minigame.WithLogger(log),
		minigame.WithRegisterer(reg),
		minigame.WithSink(types.SinkFunc(func(e types.Event) {
			log.Info("event", zap.String("kind", string(e.Kind())), zap.Any("payload", e))
		})),
		minigame.WithErrorHandler(func(e types.RemoteError) {
			log.Warn("room reported error", zap.String("code", string(e.Code)), zap.String("text", e.Text()))
		}),
		minigame.WithDisconnectHandler(func(r ws.CloseReason) {
			log.Warn("room closed the connection", zap.Stringer("reason", r))
		}),
	)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = &http.Server{Addr: cfg.MetricsAddr, Handler: routes(reg), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		ready, err := sdk.Ready(ctx)
		if err != nil {
			return err
		}
		log.Info("ready",
			zap.String("user", ready.User),
			zap.String("host", ready.Room.Host),
			zap.Int("players", len(ready.Players)),
			zap.Bool("joined_late", ready.JoinedLate))
		<-ctx.Done()
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := sdk.Destroy()
		if srv != nil {
			err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped")
	return nil
}
