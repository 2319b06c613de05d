package main

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/tablesync/go/internal/table/client"
	"github.com/mcdev12/tablesync/go/internal/table/gamestate"
	"github.com/mcdev12/tablesync/go/internal/table/relay"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	config := defaultConfig()
	if path := os.Getenv("TABLE_CONFIG"); path != "" {
		if config, err = loadConfig(path, config); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to load config")
		}
	}
	config = applyEnv(config)

	if config.RoomID == "" {
		log.Fatal().Msg("ROOM_ID is required")
	}

	log.Info().
		Str("url", config.Client.Connection.BaseURL).
		Str("room_id", config.RoomID).
		Str("user", config.Username).
		Bool("relay", config.RelayOn).
		Msg("starting table client")

	c := client.NewClient(config.Client,
		client.WithCredentials(client.NewStaticCredentials(config.Token, config.Username)),
		client.WithLogger(log.Logger),
	)
	watchEvents(c, config.RoomID)

	var r *relay.Relay
	if config.RelayOn {
		nc, err := relay.Connect(config.Relay, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nc.Close()

		r = relay.New(nc, config.Relay.SubjectPrefix, log.Logger)
		r.Attach(c)
		defer r.Detach()
	}

	server := setupServer(config.StatusPort, c, r)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("status server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("status server failed")
		}
	}()

	if err := c.Connect(config.RoomID); err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}

	lines := make(chan string)
	go readLines(lines)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

loop:
	for {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if err := runCommand(c, line); err != nil {
				if errors.Is(err, errQuit) {
					break loop
				}
				log.Warn().Err(err).Msg("command failed")
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("status server shutdown failed")
	}
	if err := c.Close(); err != nil {
		log.Error().Err(err).Msg("client close failed")
	}

	log.Info().Msg("table client shutdown complete")
}

func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

// watchEvents prints what the table does
func watchEvents(c *client.Client, roomID string) {
	c.RegisterRoomHandler(roomID, func(s gamestate.State) {
		log.Info().
			Str("phase", s.Phase).
			Int("pot", s.Pot).
			Int("current_player", s.CurrentPlayerIndex).
			Int("community_cards", s.CommunityCardCount).
			Int("players", len(s.Players)).
			Msg("table")
	})

	c.On(client.EventConnect, func(ev client.Event) {
		log.Info().Interface("data", ev.Data).Msg("connected")
	})
	c.On(client.EventDisconnect, func(ev client.Event) {
		log.Warn().Interface("data", ev.Data).Msg("disconnected")
	})
	c.On(client.EventReconnect, func(ev client.Event) {
		log.Warn().Interface("data", ev.Data).Msg("reconnecting")
	})
	c.On(client.EventError, func(ev client.Event) {
		p, _ := ev.Data.(client.ErrorPayload)
		e := log.Warn()
		if p.Fatal {
			e = log.Error()
		}
		e.Str("kind", string(p.Kind)).Int("code", p.Code).Msg(p.Message)
	})
	c.On(client.EventChat, func(ev client.Event) {
		log.Info().Interface("data", ev.Data).Msg("chat")
	})
	c.On(client.EventPlayerAction, func(ev client.Event) {
		log.Info().Interface("data", ev.Data).Msg("action")
	})
	for _, t := range []client.EventType{client.EventPlayerJoined, client.EventPlayerLeft, client.EventGameHistory} {
		c.On(t, func(ev client.Event) {
			log.Info().Interface("data", ev.Data).Msg(string(ev.Type))
		})
	}
	c.On(client.EventTimerUpdate, func(ev client.Event) {
		if u, ok := ev.Data.(client.TimerUpdate); ok && (u.Remaining <= 5 || u.Remaining%10 == 0) {
			log.Info().Int("player", u.PlayerIndex).Int("remaining", u.Remaining).Msg("turn timer")
		}
	})
}
