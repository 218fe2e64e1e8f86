package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/arcflow/pkg/channel"
	"github.com/cuemby/arcflow/pkg/config"
	"github.com/cuemby/arcflow/pkg/event"
	"github.com/cuemby/arcflow/pkg/event/protoserde"
	"github.com/cuemby/arcflow/pkg/log"
	"github.com/cuemby/arcflow/pkg/manager"
	"github.com/cuemby/arcflow/pkg/metrics"
	"github.com/cuemby/arcflow/pkg/node"
	"github.com/cuemby/arcflow/pkg/remote"
	"github.com/cuemby/arcflow/pkg/source"
	"github.com/cuemby/arcflow/pkg/state"
	"github.com/cuemby/arcflow/pkg/state/boltstate"
	"github.com/cuemby/arcflow/pkg/state/memstate"
	"github.com/cuemby/arcflow/pkg/window"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "arconode",
	Short: "arconode runs a single-process arcflow streaming pipeline",
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("config", "", "Path to a pipeline YAML config (optional; built-in defaults are used if omitted)")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus /metrics endpoint")
	runCmd.Flags().String("remote-addr", "", "Address to serve the Remote channel gRPC transport on (disabled if empty)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo keyed-count windowing pipeline",
	RunE:  runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	remoteAddr, _ := cmd.Flags().GetString("remote-addr")

	pipeline := defaultPipeline()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		pipeline = loaded
	}

	log.Init(pipeline.Spec.Logging.ToLogConfig())
	logger := log.WithComponent("arconode")

	backend, err := openBackend(pipeline.Spec.StateStore)
	if err != nil {
		return fmt.Errorf("failed to open state backend: %w", err)
	}
	defer backend.Close()

	mgr := manager.New(manager.Config{
		NodeParallelism:    pipeline.Spec.Manager.NodeParallelism,
		MaxNodeParallelism: pipeline.Spec.Manager.MaxNodeParallelism,
		HeartbeatTimeout:   pipeline.Spec.Manager.HeartbeatTimeout(),
	}, logger)

	const (
		sourceID event.NodeID = 0
		windowID event.NodeID = 1
	)

	sinkLogger := log.WithNodeID(uint32(windowID))
	sink := channel.NewPort[int64]("sink", func(ev event.Event[int64]) error {
		switch ev.Kind {
		case event.KindElement:
			sinkLogger.Info().
				Int64("count", ev.Payload).
				Uint64("window_end", ev.Timestamp).
				Msg("window fired")
		case event.KindWatermark:
			sinkLogger.Debug().Uint64("watermark", ev.WatermarkTime).Msg("watermark forwarded")
		}
		return nil
	})
	outStrategy := channel.NewForward[int64](logger, sink)

	fa, err := window.NewFuncAdapter(pipeline.Spec.Window.ToWindowConfig(), keyByKey, window.NewCountBuilder[protoserde.Record], logger)
	if err != nil {
		return fmt.Errorf("failed to build window assigner: %w", err)
	}

	windowNode, err := node.New[protoserde.Record, int64](
		windowID, []event.NodeID{sourceID}, fa, outStrategy, backend, "window-counts",
		mgr.Inbox(), 5, logger,
	)
	if err != nil {
		return fmt.Errorf("failed to build window node: %w", err)
	}
	mgr.Register(windowNode)

	admitted := channel.NewPort[protoserde.Record]("window-input", func(ev event.Event[protoserde.Record]) error {
		windowNode.InputChannel(sourceID) <- ev
		return nil
	})
	sourceStrategy := channel.NewForward[protoserde.Record](logger, admitted)

	driver := source.New[protoserde.Record](
		source.NewCollectionSource(sampleRecords()),
		sourceStrategy,
		nil,
		mgr.Inbox(),
		log.WithNodeID(uint32(sourceID)),
	)
	mgr.Register(driverHandle{id: sourceID, driver: driver})

	injector := source.NewWatermarkInjector(driver, time.Second, false, func(err error) {
		logger.Warn().Err(err).Msg("watermark injection failed")
	})

	collector := metrics.NewCollector(mgr, "demo-stage", []event.NodeID{sourceID, windowID})
	collector.Start(5 * time.Second)
	defer collector.Stop()

	var remoteServer *remote.Server
	if remoteAddr != "" {
		reg := remote.NewRegistry()
		remote.Register(reg, windowID.String(), protoserde.RecordSerde{}, windowNode.InputChannel(sourceID))
		remoteServer = remote.NewServer(reg, logger)
		lis, err := net.Listen("tcp", remoteAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on remote-addr: %w", err)
		}
		go func() {
			if err := remoteServer.Serve(lis); err != nil {
				logger.Error().Err(err).Msg("remote server stopped")
			}
		}()
		logger.Info().Str("addr", remoteAddr).Msg("remote channel transport listening")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = mgr.Run(ctx) }()
	go func() { defer wg.Done(); _ = windowNode.Run(ctx) }()

	injector.Start()
	go func() {
		if err := driver.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("source driver stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	injector.Stop()
	driver.Stop()
	windowNode.Stop()
	mgr.Stop()
	cancel()
	wg.Wait()
	if remoteServer != nil {
		remoteServer.Stop()
	}
	_ = metricsServer.Close()
	return nil
}

// driverHandle adapts a source.Driver to manager.NodeHandle so the
// manager can track it alongside the nodes it drives.
type driverHandle struct {
	id     event.NodeID
	driver interface{ Stop() }
}

func (d driverHandle) ID() event.NodeID { return d.id }
func (d driverHandle) Stop()            { d.driver.Stop() }

func keyByKey(r protoserde.Record) uint64 { return r.Key }

func openBackend(spec config.StateStoreSpec) (state.Backend, error) {
	switch spec.Kind {
	case "bolt":
		return boltstate.Open(spec.DBPath, spec.SnapshotDir)
	default:
		return memstate.New(), nil
	}
}

func defaultPipeline() *config.Pipeline {
	return &config.Pipeline{
		Spec: config.PipelineSpec{
			Window: config.WindowSpec{LengthMS: 5000, SlideMS: 5000, LatenessMS: 1000},
			Manager: config.ManagerSpec{
				NodeParallelism:    1,
				MaxNodeParallelism: 4,
				HeartbeatTimeoutMS: 30000,
			},
			StateStore: config.StateStoreSpec{Kind: "memory"},
			Logging:    config.LoggingSpec{Level: "info"},
		},
	}
}

func sampleRecords() []protoserde.Record {
	records := make([]protoserde.Record, 0, 100)
	for i := 0; i < 100; i++ {
		records = append(records, protoserde.Record{Key: uint64(i % 4), Value: float64(i)})
	}
	return records
}

var _ = zerolog.Logger{}
