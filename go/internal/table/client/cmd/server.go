package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mcdev12/tablesync/go/internal/table/client"
	"github.com/mcdev12/tablesync/go/internal/table/relay"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type statusInfo struct {
	Service string             `json:"service"`
	Version string             `json:"version"`
	Client  client.ClientStats `json:"client"`
	Relay   *relayInfo         `json:"relay,omitempty"`
}

type relayInfo struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
}

// setupServer builds the local status server. r may be nil.
func setupServer(port string, c *client.Client, r *relay.Relay) *http.Server {
	mux := http.NewServeMux()

	cr := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	setupHealthCheck(mux, c)
	setupInfo(mux, c, r)

	handler := cr.Handler(mux)
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

// /health reports 200 only while the table socket is open
func setupHealthCheck(mux *http.ServeMux, c *client.Client) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		state := c.State()
		if state != client.StateOpen {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		if _, err := w.Write([]byte(state.String())); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

func setupInfo(mux *http.ServeMux, c *client.Client, r *relay.Relay) {
	mux.HandleFunc("/info", func(w http.ResponseWriter, req *http.Request) {
		info := statusInfo{
			Service: "table-client",
			Version: "1.0.0",
			Client:  c.Stats(),
		}
		if r != nil {
			published, failed := r.Stats()
			info.Relay = &relayInfo{Published: published, Failed: failed}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(info); err != nil {
			log.Error().Err(err).Msg("failed to write info response")
		}
	})
}
