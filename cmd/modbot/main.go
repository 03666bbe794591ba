package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/sync/errgroup"

	"github.com/wavebreak/modbot/internal/bot"
	"github.com/wavebreak/modbot/internal/config"
	"github.com/wavebreak/modbot/internal/db/sqlite"
	"github.com/wavebreak/modbot/internal/infra"
	"github.com/wavebreak/modbot/internal/lifecycle"
	"github.com/wavebreak/modbot/internal/moderation"
	"github.com/wavebreak/modbot/internal/observability"
	"github.com/wavebreak/modbot/internal/platform/slack"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.MbFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := observability.Init(ctx); err != nil {
		log.WithError(err).Fatalln("cant initialize observability")
	}

	infra.GoRecoverable(0, "main", func() {
		if err := run(ctx, cfg); err != nil && !errorsIsCanceled(err) {
			log.WithError(err).Errorln("bot stopped")
			time.Sleep(1 * time.Second)
			log.Fatalln("exiting")
		}
	})
}

func run(ctx context.Context, cfg config.Config) error {
	store, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(cfg.DotPath), "modbot.db")
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Errorln("cant close db")
		}
	}()

	api := slackapi.New(
		cfg.SlackBotToken,
		slackapi.OptionAppLevelToken(cfg.SlackAppToken),
		slackapi.OptionDebug(log.Level(cfg.LogLevel) == log.TraceLevel),
	)
	chat := slack.New(api, cfg)

	now := time.Now
	exempts := moderation.NewExemptions(chat, cfg.Moderation.ExemptCacheTTL, now)
	notify := moderation.NewNotifier(chat, cfg.MirrorChannel)
	restrictions := moderation.NewRestrictions(store, notify, now)
	slowmode := moderation.NewSlowmode(store, exempts, notify, now)
	gate := moderation.NewGate(chat, exempts, restrictions, slowmode)
	sweeper := moderation.NewSweeper(restrictions, slowmode, exempts, cfg.Moderation.SweepInterval)

	runtime := lifecycle.NewRuntime(sweeper)
	if err := runtime.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithError(err).Errorln("cant stop components")
		}
	}()

	processor := bot.NewUpdateProcessor(gate)
	sm := socketmode.New(api)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sm.RunContext(gctx)
	})
	g.Go(func() error {
		return receiveEvents(gctx, sm, processor)
	})
	return g.Wait()
}

func receiveEvents(ctx context.Context, sm *socketmode.Client, processor *bot.UpdateProcessor) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sm.Events:
			if !ok {
				return nil
			}
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				if evt.Request != nil {
					sm.Ack(*evt.Request)
				}
				message, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
				if !ok {
					continue
				}
				if err := processor.Process(ctx, message); err != nil {
					log.WithError(err).Errorln("cant process message event")
				}
			case socketmode.EventTypeConnectionError:
				log.Warnln("socket mode connection error, reconnecting")
			}
		}
	}
}

func errorsIsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
