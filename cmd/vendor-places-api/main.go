// Command vendor-places-api serves a pay-per-call place-search API gated by
// the x402 payment protocol, and keeps this vendor registered with the PerkOS
// marketplace.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PerkOS-xyz/Vendor-Places-Api/internal/config"
	"github.com/PerkOS-xyz/Vendor-Places-Api/places"
	"github.com/PerkOS-xyz/Vendor-Places-Api/registry"
	"github.com/PerkOS-xyz/Vendor-Places-Api/server"
	"github.com/PerkOS-xyz/Vendor-Places-Api/x402"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	profile, err := x402.ResolveNetwork(cfg.Network, cfg.FacilitatorURL)
	if err != nil {
		log.Error("invalid network configuration", "error", err)
		os.Exit(1)
	}

	route := server.SearchRoute
	route.PriceUSD = cfg.PriceUSD
	requirement, err := x402.BuildRequirements(route, profile, cfg.WalletAddress)
	if err != nil {
		log.Error("invalid route pricing", "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Config{
		ServiceName:        cfg.ServiceName,
		ServiceDescription: cfg.ServiceDescription,
		Requirement:        requirement,
		PriceUSD:           cfg.PriceUSD,
		Facilitator:        x402.NewFacilitatorClient(profile.FacilitatorURL),
		Places:             places.NewClient(cfg.PlacesAPIKey),
		Logger:             log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconciler := registry.NewReconciler(registry.NewClient(cfg.RegistryURL), registry.Config{
		Disabled:           cfg.DisableRegistration,
		ServiceURL:         cfg.ServiceURL,
		ServiceName:        cfg.ServiceName,
		ServiceDescription: cfg.ServiceDescription,
		WalletAddress:      cfg.WalletAddress,
		Network:            cfg.Network,
		PriceUSD:           cfg.PriceUSD,
		FacilitatorURL:     profile.FacilitatorURL,
		Endpoints: []registry.Endpoint{
			{
				Path:         server.SearchRoute.Path,
				Method:       server.SearchRoute.Method,
				Description:  server.SearchRoute.Description,
				PriceUSD:     cfg.PriceUSD,
				InputSchema:  server.SearchInputSchema,
				OutputSchema: server.SearchOutputSchema,
			},
		},
		MaxAttempts: cfg.RegistrationMaxAttempts,
		RetryDelay:  cfg.RegistrationRetryDelay,
	}, log)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	// Registration runs concurrently with serving: it must never delay or
	// fail the listener.
	go reconciler.Run(ctx)

	go func() {
		log.Info("listening",
			"addr", httpSrv.Addr,
			"network", profile.Network,
			"facilitator", profile.FacilitatorURL)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
