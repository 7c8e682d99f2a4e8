package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/daybreakhq/daybreak/internal/profile"
	"github.com/daybreakhq/daybreak/server/remote"
	apiv1 "github.com/daybreakhq/daybreak/server/router/api/v1"
	"github.com/daybreakhq/daybreak/server/service/preference"
	"github.com/daybreakhq/daybreak/store"
	"github.com/daybreakhq/daybreak/store/db"
)

const greetingBanner = `daybreak - preference sync core`

var (
	rootCmd = &cobra.Command{
		Use:   "daybreak",
		Short: "Preference sync and fallback-cache core for the Daybreak assistant",
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := &profile.Profile{
				Mode:          viper.GetString("mode"),
				Addr:          viper.GetString("addr"),
				Port:          viper.GetInt("port"),
				Data:          viper.GetString("data"),
				Driver:        viper.GetString("driver"),
				DSN:           viper.GetString("dsn"),
				RemoteBaseURL: viper.GetString("remote-base-url"),
				RemoteToken:   viper.GetString("remote-token"),
				Version:       "0.3.0",
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				slog.Error("invalid profile", slog.String("error", err.Error()))
				os.Exit(1)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := run(ctx, instanceProfile); err != nil {
				slog.Error("server exited with error", slog.String("error", err.Error()))
				os.Exit(1)
			}
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8230)
	viper.SetDefault("data", "")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8230, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().String("remote-base-url", "", "base URL of the remote preference endpoint")
	rootCmd.PersistentFlags().String("remote-token", "", "bearer token for the remote preference endpoint")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("daybreak")
	viper.AutomaticEnv()
}

func run(ctx context.Context, instanceProfile *profile.Profile) error {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return fmt.Errorf("failed to create db driver: %w", err)
	}
	if err := dbDriver.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate snapshot schema: %w", err)
	}

	storeInstance := store.New(dbDriver, instanceProfile)
	defer storeInstance.Close()

	remoteClient := remote.NewClient(remote.ClientOptions{
		BaseURL:    instanceProfile.RemoteBaseURL,
		Token:      instanceProfile.RemoteToken,
		HTTPClient: &http.Client{Timeout: instanceProfile.RemoteTimeout},
		UserAgent:  "daybreak/" + instanceProfile.Version,
		MaxRetries: instanceProfile.RemoteMaxRetries,
		RateLimit:  rate.Limit(10),
		RateBurst:  20,
	})

	logger := slog.Default()
	repo := preference.NewRepository(storeInstance, remoteClient, logger)
	coordinator := preference.NewCoordinator(repo, logger)

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				slog.String("uri", v.URI),
				slog.Int("status", v.Status))
			return nil
		},
	}))

	apiService := apiv1.NewAPIV1Service(instanceProfile, storeInstance, repo, coordinator)
	apiService.RegisterRoutes(echoServer)

	listenAddr := fmt.Sprintf("%s:%d", instanceProfile.Addr, instanceProfile.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- echoServer.Start(listenAddr)
	}()
	fmt.Println(greetingBanner)
	slog.Info("server started", slog.String("addr", listenAddr), slog.String("mode", instanceProfile.Mode))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-sigCh:
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := echoServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		coordinator.Wait()
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
