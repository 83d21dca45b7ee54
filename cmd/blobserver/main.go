// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

// Command blobserver runs the reference blob store used for developing and
// testing synchronization. It keeps blobs in memory and implements the same
// HTTP surface the engine's remote adapter talks to.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KhylleVillasurda/Notequarry/internal/blobserver"
	"github.com/KhylleVillasurda/Notequarry/internal/logger"
)

const shutdownTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", defaultAddr(), "listen address")
	flag.Parse()

	log := logger.NewLogger("blobserver")

	srv := &http.Server{
		Addr:              *addr,
		Handler:           blobserver.New(log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		log.Info().Str("addr", *addr).Msg("blob server: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("blob server: listen")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("blob server: shutdown")
	}
	log.Info().Msg("blob server: stopped")
}

func defaultAddr() string {
	if addr := os.Getenv("BLOBSERVER_ADDR"); addr != "" {
		return addr
	}
	return ":8090"
}
