package main

import (
	"coldcall/app/client/calendar"
	"coldcall/app/client/twilio"
	"coldcall/app/client/voice"
	"coldcall/app/config"
	"coldcall/app/service/call"
	"coldcall/app/service/session"
	"coldcall/app/service/telephony"
	"coldcall/app/util/mylog"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, calendar.New)
	do.Provide(di, voice.NewClient)
	do.Provide(di, twilio.NewClient)
	do.Provide(di, session.New)
	do.Provide(di, call.New)
	do.Provide(di, telephony.New)

	slog.Info("Service started", "port", cfg.Server.Port)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go func() {
		if err := do.MustInvoke[*telephony.Service](di).Run(appCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server stopped", "error", err)
			cancel()
		}
	}()

	<-appCtx.Done()
}
