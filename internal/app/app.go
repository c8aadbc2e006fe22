// Package app provides application initialization and dependency wiring.
//
// Setup builds the full component graph: database pool and migrations,
// Genkit with the configured AI provider, the knowledge store, ingestion
// pipeline, retrieval engine, portal client and the query orchestrator.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bureauhq/bureau/internal/agent"
	"github.com/bureauhq/bureau/internal/api"
	"github.com/bureauhq/bureau/internal/config"
	"github.com/bureauhq/bureau/internal/history"
	"github.com/bureauhq/bureau/internal/ingest"
	"github.com/bureauhq/bureau/internal/knowledge"
	"github.com/bureauhq/bureau/internal/log"
	"github.com/bureauhq/bureau/internal/portal"
	"github.com/bureauhq/bureau/internal/retrieval"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Knowledge    *knowledge.Store
	Pipeline     *ingest.Pipeline
	Retrieval    *retrieval.Engine
	Portal       *portal.Client // nil when no portal is configured
	Recorder     *history.Recorder
	Orchestrator *agent.Orchestrator
	Server       *api.Server

	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully releases all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
