package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moyoez/blendconv/api"
	"github.com/moyoez/blendconv/notify"
	"github.com/moyoez/blendconv/saga"
	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/transfer"
	"github.com/moyoez/blendconv/types"
)

func main() {
	flags := tool.SetFlags()

	// initialize logger
	tool.InitLogger()
	tool.SetLogMode(flags.Log)

	appCfg, err := tool.LoadConfig(flags.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	if err := tool.ApplyFlags(&appCfg, flags); err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := transfer.NewClient(&appCfg)
	supervisor, shutdownSupervisor, err := buildSupervisor(ctx, &appCfg)
	if err != nil {
		tool.DefaultLogger.Fatalf("Failed to open notification channel: %v", err)
	}
	defer shutdownSupervisor()

	if flags.File != "" {
		if err := runOnce(ctx, &appCfg, client, supervisor, flags.File); err != nil {
			shutdownSupervisor()
			if errors.Is(err, types.ErrCancelled) {
				os.Exit(130)
			}
			tool.DefaultLogger.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}

	server := api.NewServer(appCfg, client, supervisor)
	go func() {
		if err := server.Start(); err != nil {
			tool.DefaultLogger.Fatalf("Control API startup failed: %v", err)
		}
	}()

	<-ctx.Done()
	tool.DefaultLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		tool.DefaultLogger.Warnf("Control API shutdown: %v", err)
	}
}

// buildSupervisor picks the channel lifetime policy from config. A long-lived
// channel is opened right away and closed by the returned func.
func buildSupervisor(ctx context.Context, cfg *types.AppConfig) (saga.Supervisor, func(), error) {
	opts := notify.Options{
		URL:          cfg.WebsocketURL,
		APIKey:       cfg.APIKey,
		PingInterval: cfg.PingInterval,
	}
	if cfg.SessionPolicy == types.SessionPolicyLongLived {
		tool.DefaultLogger.Info("Using long-lived notification channel")
		ll := saga.NewLongLived(opts)
		if err := ll.Start(ctx); err != nil {
			return nil, func() {}, err
		}
		return ll, ll.Stop, nil
	}
	tool.DefaultLogger.Info("Using one notification channel per upload")
	return saga.NewPerAttempt(opts), func() {}, nil
}

func runOnce(ctx context.Context, cfg *types.AppConfig, client saga.ResourceClient, supervisor saga.Supervisor, path string) error {
	fileName, payload, err := tool.ReadUploadFile(ctx, path)
	if err != nil {
		return err
	}
	sourceFormat := tool.ResolveSourceFormat(fileName, cfg.SourceFormat)
	if err := tool.ValidateFormats(sourceFormat, cfg.TargetFormat); err != nil {
		return err
	}

	attempt := types.NewUploadAttempt(tool.GenerateAttemptID(), fileName, payload, sourceFormat, cfg.TargetFormat)
	s := saga.New(client, supervisor, saga.Options{
		TokenTimeout:      cfg.TokenTimeout,
		CompletionTimeout: cfg.CompletionTimeout,
		Observer: func(snap types.AttemptSnapshot) {
			tool.DefaultLogger.Infof("[%s] %s", snap.ResourceID, snap.State)
		},
	})
	result, err := s.Run(ctx, attempt)
	if err != nil {
		return err
	}
	if result.URL == "" {
		fmt.Printf("%s converted to %s; result not yet available, fetch it later\n", attempt.ResourceID, attempt.TargetFormat)
		return nil
	}
	fmt.Println(result.URL)
	return nil
}
