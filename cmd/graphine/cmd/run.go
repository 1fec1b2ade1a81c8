package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/graphine/graphine/internal/apps/bfs"
	"github.com/graphine/graphine/internal/csrio"
	"github.com/graphine/graphine/internal/datamgr"
	enginerpc "github.com/graphine/graphine/internal/engine/rpc"
	enginetrace "github.com/graphine/graphine/internal/engine/trace"
	"github.com/graphine/graphine/internal/graph"
	"github.com/graphine/graphine/internal/msgmgr"
	"github.com/graphine/graphine/internal/runlog"
	"github.com/graphine/graphine/internal/scheduler"
	"github.com/graphine/graphine/internal/wsstore"
	"github.com/graphine/graphine/pkg/engconfig"
	"github.com/graphine/graphine/pkg/engineerr"
	"github.com/graphine/graphine/pkg/parallel"
)

var (
	configPath    string
	workspacePath string
	rootID        uint64
	numLoad       int
	numCompute    int
	numDischarge  int
	numCores      int
	bufferSize    int
	gidsFlag      string
	statusAddr    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the BFS reference app over a CSR-partitioned workspace to fixpoint",
	RunE:  runEngine,
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a graphine.yaml config file (flags below override it)")
	runCmd.Flags().StringVarP(&workspacePath, "workspace", "w", "", "Workspace directory holding the CSR bundle")
	runCmd.Flags().Uint64Var(&rootID, "root-id", 0, "Global vertex id BFS starts from")
	runCmd.Flags().IntVar(&numLoad, "load-workers", 0, "Load pool width (0 = use config/default)")
	runCmd.Flags().IntVar(&numCompute, "compute-workers", 0, "Compute pool width (0 = use config/default)")
	runCmd.Flags().IntVar(&numDischarge, "discharge-workers", 0, "Discharge pool width (0 = use config/default)")
	runCmd.Flags().IntVar(&numCores, "cores", 0, "Cores available to a single fragment's per-task parallel-for (0 = use config/default)")
	runCmd.Flags().IntVar(&bufferSize, "buffer-size", 0, "Resident-fragment budget (0 = use config/default)")
	runCmd.Flags().StringVar(&gidsFlag, "gids", "", "Comma-separated GID list; required for cos storage (local storage auto-discovers from meta/)")
	runCmd.Flags().StringVar(&statusAddr, "status-addr", "", "If set, serve a read-only EngineStatus gRPC endpoint on this address for the run's duration (e.g. :9090)")
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	cfg, err := engconfig.Load(configPath)
	if err != nil {
		return engineerr.New(engineerr.KindUsageError, err.Error())
	}
	applyFlagOverrides(cfg)
	if cfg.Workspace.Path == "" {
		return engineerr.New(engineerr.KindUsageError, "workspace path is required (-w or config workspace.path)")
	}

	runID := uuid.New().String()
	ctx := context.Background()

	tcfg := enginetrace.LoadFromEnv()
	if cfg.Telemetry.Enabled {
		tcfg.Enabled = true
	}
	if cfg.Telemetry.ServiceName != "" {
		tcfg.ServiceName = cfg.Telemetry.ServiceName
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tcfg.Endpoint = cfg.Telemetry.OTLPEndpoint
	}
	if cfg.Telemetry.SamplerRatio != 0 {
		tcfg.SampleRatio = cfg.Telemetry.SamplerRatio
	}
	shutdownTracing, err := enginetrace.InitWithConfig(ctx, tcfg)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, err := wsstore.New(cfg.Storage)
	if err != nil {
		return err
	}

	gids, err := resolveGIDs(cfg, store, ctx)
	if err != nil {
		return err
	}
	if len(gids) == 0 {
		return engineerr.New(engineerr.KindUsageError, "no fragments found in workspace")
	}

	if cfg.Storage.Type == "cos" {
		log.Info("fetching %d fragment(s) from object storage", len(gids))
		if err := wsstore.FetchWorkspace(ctx, store, cfg.Workspace.Path, gids, parallel.DefaultPoolConfig()); err != nil {
			return err
		}
	}

	var ledger *runlog.Ledger
	if cfg.RunLog.Enabled {
		db, err := runlog.Open(cfg.RunLog.Driver, cfg.RunLog.DSN)
		if err != nil {
			return err
		}
		ledger = runlog.NewLedger(db)
		if err := ledger.StartRun(ctx, runID, cfg.Workspace.Path); err != nil {
			return err
		}
	}

	dm := datamgr.New(cfg.Workspace.Path)
	mm := msgmgr.NewManager(len(gids))
	app := bfs.App{}
	appCtx := &bfs.Context{RootID: graph.VID(cfg.Workspace.RootID)}

	sched := scheduler.New[bfs.Context](scheduler.Config{
		NumLoadWorkers:      cfg.Scheduler.NumLoadWorkers,
		NumComputeWorkers:   cfg.Scheduler.NumComputeWorkers,
		NumDischargeWorkers: cfg.Scheduler.NumDischargeWorkers,
		NumCores:            cfg.Scheduler.NumCores,
		BufferSize:          cfg.Scheduler.BufferSize,
	}, dm, mm, app, appCtx, log, gids)
	if ledger != nil {
		sched = sched.WithRunLog(ledger, runID)
	}

	if statusAddr != "" {
		lis, err := net.Listen("tcp", statusAddr)
		if err != nil {
			return fmt.Errorf("status-addr: %w", err)
		}
		statusSrv := enginerpc.NewGRPCServer(sched)
		go func() { _ = statusSrv.Serve(lis) }()
		defer statusSrv.Stop()
		log.Info("serving EngineStatus on %s", statusAddr)
	}

	log.Info("run %s: starting over %d fragment(s), root=%d", runID, len(gids), cfg.Workspace.RootID)
	start := time.Now()
	report, runErr := sched.Run(ctx)
	elapsed := time.Since(start)

	exitCode := engineerr.ExitCode(runErr)
	if ledger != nil {
		_ = ledger.FinishRun(ctx, runID, report.Epoch, exitCode)
	}

	if runErr != nil {
		log.Error("run %s failed after %s: %v", runID, elapsed, runErr)
		os.Exit(exitCode)
	}

	if cfg.Storage.Type == "cos" {
		log.Info("pushing results for %d fragment(s) to object storage", len(gids))
		if err := wsstore.PushResults(ctx, store, cfg.Workspace.Path, gids, parallel.DefaultPoolConfig()); err != nil {
			return err
		}
	}

	log.Info("run %s: reached fixpoint at epoch %d in %s", runID, report.Epoch, elapsed)
	for _, gid := range gids {
		log.Debug("fragment %d last ran at epoch %d", gid, report.FragmentEpochs[gid])
	}
	return nil
}

func applyFlagOverrides(cfg *engconfig.Config) {
	if workspacePath != "" {
		cfg.Workspace.Path = workspacePath
	}
	if rootID != 0 {
		cfg.Workspace.RootID = rootID
	}
	if numLoad > 0 {
		cfg.Scheduler.NumLoadWorkers = numLoad
	}
	if numCompute > 0 {
		cfg.Scheduler.NumComputeWorkers = numCompute
	}
	if numDischarge > 0 {
		cfg.Scheduler.NumDischargeWorkers = numDischarge
	}
	if numCores > 0 {
		cfg.Scheduler.NumCores = numCores
	}
	if bufferSize > 0 {
		cfg.Scheduler.BufferSize = bufferSize
	}
}

// resolveGIDs discovers which fragments the run covers. Local storage
// can list meta/ directly; cos storage has no bucket-listing surface
// in wsstore.Store, so its GID set must be named explicitly.
func resolveGIDs(cfg *engconfig.Config, store wsstore.Store, ctx context.Context) ([]graph.GID, error) {
	if gidsFlag != "" {
		return parseGIDs(gidsFlag)
	}
	if cfg.Storage.Type == "cos" {
		return nil, engineerr.New(engineerr.KindUsageError, "--gids is required when storage.type is cos")
	}
	return csrio.DiscoverGIDs(cfg.Workspace.Path)
}

func parseGIDs(s string) ([]graph.GID, error) {
	parts := strings.Split(s, ",")
	gids := make([]graph.GID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, engineerr.New(engineerr.KindUsageError, fmt.Sprintf("invalid gid %q: %v", p, err))
		}
		gids = append(gids, v)
	}
	return gids, nil
}
