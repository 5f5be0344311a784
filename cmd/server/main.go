package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/loopvinyl/tco2eq-v3/config"
	"github.com/loopvinyl/tco2eq-v3/internal/insights"
	"github.com/loopvinyl/tco2eq-v3/internal/registry"
	"github.com/loopvinyl/tco2eq-v3/internal/runtime"
	"github.com/loopvinyl/tco2eq-v3/internal/security"
	"github.com/loopvinyl/tco2eq-v3/internal/telemetry"
	"github.com/loopvinyl/tco2eq-v3/internal/workbooks"
	"github.com/loopvinyl/tco2eq-v3/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio        bool
		shutdownTimeout time.Duration
		configPath      string
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run server over stdio transport")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	flag.StringVar(&configPath, "config", "", "Path to a tco2eq.yaml config file")
	flag.Parse()

	logger := zlog.With().Str("service", "tco2eq-server").Logger()
	ctx := logger.WithContext(context.Background())

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("config: failed to load settings")
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Security: validate allow-list directories on startup (fail-safe on error)
	secMgr, err := security.NewManagerFromEnv(cfg.AllowedDirs)
	if err != nil {
		logger.Error().Err(err).Msg("security: failed to initialize manager")
		fmt.Fprintln(os.Stderr, "invalid security configuration; set TCO2EQ_ALLOWED_DIRS")
		os.Exit(1)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		fmt.Fprintln(os.Stderr, "no allowed directories configured; set TCO2EQ_ALLOWED_DIRS")
		os.Exit(1)
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

	limits := runtime.FromSettings(cfg)
	runtimeController := runtime.NewController(limits)
	runtimeMW := runtime.NewMiddleware(runtimeController)

	manager := workbooks.NewManager(cfg.WorkbookIdleTTL, cfg.WorkbookCleanupPeriod, runtimeController, nil)
	manager.SetValidator(secMgr)
	manager.SetFetchLimits(int64(cfg.MaxFetchBytes), cfg.FetchTimeout)
	manager.Start()

	profileCache := insights.NewProfileCache(config.DefaultProfileCacheEntries)

	toolRegistry := registry.New()
	exportFilter := registry.NewExportToolFilterFromEnv()

	srv := server.NewMCPServer(
		"tCO2eq Workbook Analysis Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithRecovery(),
		server.WithHooks(telemetry.NewServerHooks(logger)),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool { return exportFilter.FilterTools(ctx, tools) }),
	)

	registry.RegisterFoundationTools(srv, toolRegistry, runtimeController.LimitsSnapshot(), manager)
	registry.RegisterAnalysisTools(srv, toolRegistry, runtimeController.LimitsSnapshot(), manager, profileCache, secMgr)

	toolContextSize := toolRegistry.ModelContextSize(cfg.ModelName)

	registeredTools, _ := toolRegistry.Tools(ctx)

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_workbooks", limits.MaxOpenWorkbooks).
		Int("registered_tools", len(registeredTools)).
		Int("model_context_size", toolContextSize).
		Bool("stdio", useStdio).
		Msg("server bootstrap configured")

	if useStdio {
		serveErr := server.ServeStdio(srv)

		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("workbook manager close timed out")
		}

		if serveErr != nil {
			// Use stderr for transport errors so clients don't misinterpret output
			fmt.Fprintf(os.Stderr, "Server error: %v\n", serveErr)
			os.Exit(1)
		}
		return
	}

	// If no transport flags provided, print usage and exit non-zero
	fmt.Fprintln(os.Stderr, "no transport selected; use --stdio to run over stdio")
	os.Exit(2)
}
