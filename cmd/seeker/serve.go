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

	"github.com/rahul/seeker/internal/agent"
	"github.com/rahul/seeker/internal/gateway"
	"github.com/rahul/seeker/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, chat gateways and scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		handler := &gateway.Handler{Runner: a.runner}
		if a.store != nil {
			handler.Schedules = a.store
		}

		router := gateway.NewRouter()
		if g, ok := cfg.GetGateway("telegram"); ok {
			tg, err := gateway.NewTelegramGateway(g.Token, handler)
			if err != nil {
				return err
			}
			router.Register("telegram", tg, gateway.TelegramMaxLen)
			startGateway("telegram", tg, stop)
		}
		if g, ok := cfg.GetGateway("discord"); ok {
			dg, err := gateway.NewDiscordGateway(g.Token, handler)
			if err != nil {
				return err
			}
			router.Register("discord", dg, gateway.DiscordMaxLen)
			startGateway("discord", dg, stop)
		}
		defer router.Stop()
		if names := router.Names(); len(names) > 0 {
			log.Printf("gateways: %v", names)
		}

		if a.store != nil {
			scheduler := agent.NewScheduler(a.runner, a.store, router)
			go scheduler.Start(ctx)
		}

		var runs server.RunStore
		if a.store != nil {
			runs = a.store
		}
		srv := server.New(a.runner, runs, a.gatherer)
		errc := make(chan error, 1)
		go func() { errc <- srv.Start(cfg.Server.Address) }()

		select {
		case <-ctx.Done():
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		log.Println("[ EXIT ] seeker stopped")
		return nil
	},
}

// startGateway runs m in the background; a gateway that dies takes the process down.
func startGateway(name string, m gateway.Messenger, stop context.CancelFunc) {
	go func() {
		if err := m.Start(); err != nil {
			log.Printf("[ FAIL ] gateway %s: %v", name, err)
			stop()
		}
	}()
}
