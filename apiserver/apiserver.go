// Copyright 2025 Zyros Dev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/zyros-dev/pgx-lower-api/analytics"
	"github.com/zyros-dev/pgx-lower-api/cnf"
	"github.com/zyros-dev/pgx-lower-api/engine"
	"github.com/zyros-dev/pgx-lower-api/ir"
	"github.com/zyros-dev/pgx-lower-api/ratelimit"
	"github.com/zyros-dev/pgx-lower-api/stats"
)

type apiServer struct {
	conf           *cnf.Conf
	server         *http.Server
	version        string
	db             *stats.Database
	runner         *engine.Runner
	limiter        *ratelimit.Limiter
	engines        map[string]engine.Engine
	dfltEngine     string
	compareEngines []engine.Engine
	tracker        *analytics.Tracker
	metrics        *apiMetrics
	registry       *prometheus.Registry
	debugKey       string
	startTime      time.Time
}

func (api *apiServer) selectEngine(name string) (engine.Engine, error) {
	if name == "" {
		name = api.dfltEngine
	}
	eng, ok := api.engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine: %s", name)
	}
	return eng, nil
}

func (api *apiServer) Start(ctx context.Context) {
	if !api.conf.Logging.Level.IsDebugMode() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware())
	router.Use(uniresp.AlwaysJSONContentType())
	router.Use(corsMiddleware(api.conf))
	router.NoMethod(uniresp.NoMethodHandler)
	router.NoRoute(uniresp.NotFoundHandler)

	router.POST("/query", api.handleQuery)
	router.POST("/query/compare", api.handleCompare)
	router.GET("/stats/performance", api.handlePerformanceStats)
	router.POST("/debug", api.handleDebug)
	router.GET("/health", api.handleHealth)
	router.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(api.registry, promhttp.HandlerOpts{})))

	log.Info().Msgf("starting to listen at %s:%d", api.conf.ListenAddress, api.conf.ListenPort)
	api.server = &http.Server{
		Handler:      router,
		Addr:         fmt.Sprintf("%s:%d", api.conf.ListenAddress, api.conf.ListenPort),
		WriteTimeout: time.Duration(api.conf.ServerWriteTimeoutSecs) * time.Second,
		ReadTimeout:  time.Duration(api.conf.ServerReadTimeoutSecs) * time.Second,
	}
	go func() {
		if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()
}

func (api *apiServer) Stop(ctx context.Context) error {
	log.Warn().Msg("shutting down pgx-lower-api HTTP server")
	for _, eng := range api.engines {
		if err := eng.Disconnect(ctx); err != nil {
			log.Error().Err(err).Str("engine", eng.Name()).Msg("failed to disconnect engine")
		}
	}
	return api.server.Shutdown(ctx)
}

// -------------------------

// buildEngines instantiates the configured engines. The introspectable
// pgx-lower engine is the default target; stock Postgres, when
// configured, joins it as the comparison baseline.
func buildEngines(conf *cnf.Conf) (map[string]engine.Engine, string, []engine.Engine) {
	extractor := ir.NewExtractor(conf.StagingDir)
	pgxIR := engine.NewPgxLowerIR(conf.PgxLower, extractor)
	engines := map[string]engine.Engine{pgxIR.Name(): pgxIR}
	var compare []engine.Engine
	if !conf.Postgres.IsZero() {
		pg := engine.NewPostgres(conf.Postgres)
		engines[pg.Name()] = pg
		compare = []engine.Engine{pg, pgxIR}
	}
	return engines, pgxIR.Name(), compare
}

// Run wires all components together and blocks until ctx is cancelled.
func Run(ctx context.Context, conf *cnf.Conf, version string) {

	db, err := stats.NewDatabase(conf.WorkingDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open working database")
		return
	}
	if err := db.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize working database")
		return
	}
	defer db.Close()

	gate := engine.NewGate(conf.GateTimeout())
	runner := engine.NewRunner(gate)
	limiter := ratelimit.NewLimiter(
		conf.RateLimit.CachedPerMin, conf.RateLimit.UncachedPerMin)

	engines, dfltEngine, compareEngines := buildEngines(conf)

	var tracker *analytics.Tracker
	if conf.Analytics.MeasurementID != "" {
		tracker = analytics.NewTracker(conf.Analytics)
	}

	registry := prometheus.NewRegistry()

	server := &apiServer{
		conf:           conf,
		version:        version,
		db:             db,
		runner:         runner,
		limiter:        limiter,
		engines:        engines,
		dfltEngine:     dfltEngine,
		compareEngines: compareEngines,
		tracker:        tracker,
		metrics:        newAPIMetrics(registry),
		registry:       registry,
		debugKey:       newDebugKey(),
		startTime:      time.Now(),
	}

	services := []service{server, stats.NewAggregator(db)}
	for _, m := range services {
		m.Start(ctx)
	}
	<-ctx.Done()
	log.Warn().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range services {
		wg.Add(1)
		go func(srv service) {
			defer wg.Done()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Type("service", srv).Msg("Error shutting down service")
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Graceful shutdown completed")
	case <-shutdownCtx.Done():
		log.Warn().Msg("Shutdown timed out")
	}
}
