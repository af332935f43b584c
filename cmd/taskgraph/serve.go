package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskgraph/internal/ctxlog"
	"taskgraph/internal/db"
	"taskgraph/internal/engine"
	"taskgraph/internal/migrate"
	"taskgraph/internal/repo"
	"taskgraph/internal/server"
)

func serveCmd() *cobra.Command {
	var basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the task API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			logger := ctxlog.FromContext(cmd.Context())
			return withDB(cmd.Context(), func(ctx context.Context, conn *sql.DB) error {
				e := engine.New(conn)
				handler, err := server.New(server.Config{
					Engine:       e,
					BasePath:     cfg.Server.BasePath,
					Auth:         server.AuthConfig{JWTSecret: cfg.Server.JWTSecret},
					CORSOrigins:  cfg.Server.CORSOrigins,
					DefaultLimit: cfg.Server.DefaultLimit,
					Logger:       logger,
				})
				if err != nil {
					return err
				}
				go server.NewWebhookDispatcher(e.Repo, cfg.Webhooks, logger).Run(ctx)

				srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				logger.Info("serving task api", "addr", cfg.Server.Addr, "base_path", cfg.Server.BasePath, "auth", cfg.Server.JWTSecret != "")
				fmt.Printf("Serving task API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides server.base_path)")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}

// withDB opens and migrates the workspace database.
func withDB(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	applied, err := migrate.Migrate(ctx, conn)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		ctxlog.FromContext(ctx).Info("applied migrations", "versions", applied, "db", db.Path(workspace))
	}
	return fn(ctx, conn)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	return withDB(ctx, func(ctx context.Context, conn *sql.DB) error {
		return fn(ctx, repo.Repo{DB: conn})
	})
}
