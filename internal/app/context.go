package app

import (
	"log/slog"
	"net/http"

	"taskgraph/internal/config"
	"taskgraph/internal/graph"
	"taskgraph/internal/store"
	taskgraphsdk "taskgraph/sdk/go"
)

// Context bundles the client-side collaborators built from a workspace config.
type Context struct {
	Config    *config.Config
	Client    *taskgraphsdk.Client
	Store     *store.Store
	Projector graph.Projector
	Logger    *slog.Logger
}

// New wires an SDK client, a task store and a projector from cfg. A nil
// logger means slog.Default.
func New(cfg *config.Config, notify store.Notifier, logger *slog.Logger) (*Context, error) {
	if logger == nil {
		logger = slog.Default()
	}
	policy, err := graph.ParseDanglingPolicy(cfg.Graph.DanglingEdges)
	if err != nil {
		return nil, err
	}
	client := taskgraphsdk.New(cfg.API.BaseURL)
	if cfg.API.Timeout > 0 {
		client.Timeout = cfg.API.Timeout
		client.HTTPClient = &http.Client{Timeout: cfg.API.Timeout}
	}
	client.BearerToken = cfg.API.Token
	logger.Debug("task api client", "base_url", cfg.API.BaseURL, "timeout", client.Timeout)
	return &Context{
		Config:    cfg,
		Client:    client,
		Store:     store.New(RemoteAPI{Client: client}, notify),
		Projector: graph.NewProjector(graph.Bounds{Width: cfg.Graph.Width, Height: cfg.Graph.Height}, policy),
		Logger:    logger,
	}, nil
}
