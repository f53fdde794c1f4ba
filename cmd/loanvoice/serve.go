package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/quickfin/loanvoice"
	httpAdapter "github.com/quickfin/loanvoice/internal/adapters/http"
	"github.com/quickfin/loanvoice/internal/collection"
	"github.com/quickfin/loanvoice/internal/config"
	"github.com/quickfin/loanvoice/internal/driver/gemini"
	"github.com/quickfin/loanvoice/internal/logging"
	"github.com/quickfin/loanvoice/internal/metrics"
	"github.com/quickfin/loanvoice/internal/presentation/tui"
	"github.com/quickfin/loanvoice/internal/rtc"
	"github.com/quickfin/loanvoice/internal/stt/deepgram"
	"github.com/quickfin/loanvoice/internal/tts"
	"github.com/quickfin/loanvoice/pkg/adapters/redis"
	"github.com/quickfin/loanvoice/pkg/ports"
	"github.com/quickfin/loanvoice/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the voice call server",
	Long:  `Starts the signaling and dashboard API and takes WebRTC calls.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("port") {
			port, _ := cmd.Flags().GetString("port")
			cfg.HTTPAddress = ":" + port
		}

		logger := logging.New(logging.ParseLevel(cfg.LogLevel))
		m := metrics.New()

		var registry ports.Registry
		if cfg.Redis.Address != "" {
			store := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB,
				redis.WithTTL(cfg.Redis.TTL))
			registry = session.NewManager(store, session.WithLogger(logger))
			logger.Info("using redis session registry", "address", cfg.Redis.Address)
		}

		opts := []loanvoice.Option{
			loanvoice.WithLogger(logger),
			loanvoice.WithMetrics(m),
		}
		if registry != nil {
			opts = append(opts, loanvoice.WithRegistry(registry))
		}

		svc, err := loanvoice.New(opts...)
		if err != nil {
			fmt.Printf("Error initializing service: %v\n", err)
			os.Exit(1)
		}

		driver := gemini.NewClient(cfg.GoogleAPIKey, cfg.GeminiModel,
			collection.SystemPrompt(collection.DefaultBorrower))

		calls := rtc.NewHandler(rtc.Deps{
			Engine: svc.Engine,
			Driver: driver,
			NewTranscriber: func() ports.Transcriber {
				return deepgram.NewClient(deepgram.Config{
					APIKey:   cfg.DeepgramAPIKey,
					Model:    cfg.STTModel,
					Language: cfg.STTLanguage,
					Logger:   logger,
				})
			},
			NewSynthesizer: func(backend string) (ports.Synthesizer, error) {
				switch backend {
				case config.TTSDeepgram:
					return tts.NewDeepgram(cfg.DeepgramAPIKey, cfg.DeepgramVoice), nil
				case config.TTSEdge:
					return tts.NewEdge(cfg.EdgeVoice), nil
				default:
					return nil, fmt.Errorf("unknown tts backend %q", backend)
				}
			},
			ICEServers: iceServers(cfg),
			Logger:     logger,
			Metrics:    m,
		})

		api := httpAdapter.NewServer(calls, svc.Registry, svc.Graph, cfg, m, logger)
		srv := &http.Server{
			Addr:    cfg.HTTPAddress,
			Handler: api.Handler(),
		}

		tui.PrintBanner()

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("server listening", "address", srv.Addr, "default_tts", cfg.DefaultTTS)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("error killing server", "err", err)
				}
			}
			logger.Info("server stopped")
		}
	},
}

// iceServers translates the config into the pion ICE configuration used for
// server-side peer connections.
func iceServers(cfg config.Config) []webrtc.ICEServer {
	servers := []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	if cfg.TURN.URL != "" && cfg.TURN.Username != "" && cfg.TURN.Credential != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{cfg.TURN.URL},
			Username:   cfg.TURN.Username,
			Credential: cfg.TURN.Credential,
		})
	}
	return servers
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
