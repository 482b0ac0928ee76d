// Command kernelctl is the kernel's CLI driver (spec.md SPEC_FULL.md §2
// component L): wire kconfig → klog → kmetrics → toolkit → tools → state →
// transport → loop and drive one user turn end to end, following the
// cobra root-command-plus-subcommands shape the retrieval pack's
// haasonsaas-nexus cmd/nexus-edge uses.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ctxmetab/kernel/desktopdriver"
	"github.com/ctxmetab/kernel/kconfig"
	"github.com/ctxmetab/kernel/klog"
	"github.com/ctxmetab/kernel/kmetrics"
	"github.com/ctxmetab/kernel/loop"
	"github.com/ctxmetab/kernel/schema"
	"github.com/ctxmetab/kernel/state"
	"github.com/ctxmetab/kernel/tools"
	"github.com/ctxmetab/kernel/toolkit"
)

// version is set at build time via -ldflags, matching the teacher pack's
// convention of a package-level Version var for "kernelctl version".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kernelctl",
		Short: "Context-metabolism kernel CLI driver",
		Long: `kernelctl wires the kernel's tool registry, shape-aware file
toolkit, stage machine, and LLM transport together and drives one
conversational turn through the outline -> select -> summarize -> load
pipeline.`,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("kernelctl " + version)
		},
	}
}

type runFlags struct {
	system        string
	message       string
	enableDesktop bool
	metricsAddr   string
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{system: "You are a careful assistant operating under a finite, non-replayable context. Scan before loading, summarize before retaining, prune before continuing."}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive one kernel turn to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKernel(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.system, "system", flags.system, "system prompt injected verbatim (spec.md §6)")
	cmd.Flags().StringVar(&flags.message, "message", "", "the user's opening message (required)")
	cmd.Flags().BoolVar(&flags.enableDesktop, "enable-desktop", false, "launch a real Playwright-backed computer_use driver instead of refusing desktop actions")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func runKernel(ctx context.Context, flags *runFlags) error {
	cfg, err := kconfig.Load()
	if err != nil {
		return fmt.Errorf("kernelctl: %w", err)
	}
	klog.Init(cfg.LogPath, cfg.LogLevel)

	reg := prometheus.NewRegistry()
	collector := kmetrics.NewPrometheusCollector(reg)
	if flags.metricsAddr != "" {
		serveMetrics(flags.metricsAddr, reg)
	}

	transport, err := kconfig.NewTransport(cfg)
	if err != nil {
		return fmt.Errorf("kernelctl: %w", err)
	}

	system := schema.NewTextMessage(schema.RoleSystem, flags.system)
	user := schema.NewTextMessage(schema.RoleUser, flags.message)
	kernel := state.New(system, user, state.WithConfig(cfg.Kernel), state.WithMetrics(collector))

	toolRegistry, executor, err := buildToolset(cfg, kernel, flags.enableDesktop)
	if err != nil {
		return fmt.Errorf("kernelctl: %w", err)
	}
	defer executor.Stop()

	runLoop := loop.New(kernel, transport, toolRegistry, executor, loop.DefaultConfig())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshots, errc := runLoop.Run(ctx)
	return drain(snapshots, errc)
}

// buildToolset registers every tool spec.md §6 names against a fresh
// toolkit registry, returning the tool registry and its worker-pool
// executor ready for loop.New.
func buildToolset(cfg kconfig.Config, k *state.Kernel, enableDesktop bool) (*tools.Registry, *tools.Executor, error) {
	shapeRegistry := toolkit.NewDefaultRegistry(cfg.WorkDir)

	toolRegistry := tools.NewRegistry()
	register := func(t tools.Tool) error { return toolRegistry.Register(t) }

	if err := register(tools.NewDescribeFileTool(shapeRegistry)); err != nil {
		return nil, nil, err
	}
	if err := register(tools.NewExtractSectionTool(shapeRegistry)); err != nil {
		return nil, nil, err
	}
	if err := register(tools.NewReplaceSectionTool(shapeRegistry)); err != nil {
		return nil, nil, err
	}
	if err := register(tools.NewSummarizeTool()); err != nil {
		return nil, nil, err
	}
	if err := register(tools.NewEraseTool(k)); err != nil {
		return nil, nil, err
	}
	if err := register(tools.NewPromoteTool(k)); err != nil {
		return nil, nil, err
	}

	driver, err := newDesktopDriver(cfg.WorkDir, enableDesktop)
	if err != nil {
		return nil, nil, err
	}
	if err := register(tools.NewDesktopTool(driver)); err != nil {
		return nil, nil, err
	}

	executor := tools.NewExecutor(toolRegistry, tools.DefaultExecutorConfig)
	return toolRegistry, executor, nil
}

// desktopRefusedDriver stands in for desktopdriver.Driver when
// --enable-desktop is not passed, so computer_use calls fail cleanly as an
// unsupported_operation tool error instead of silently launching a browser.
type desktopRefusedDriver struct{}

func (desktopRefusedDriver) Key(context.Context, string) error              { return errDesktopDisabled }
func (desktopRefusedDriver) Type(context.Context, string) error             { return errDesktopDisabled }
func (desktopRefusedDriver) MouseMove(context.Context, desktopdriver.Point) error {
	return errDesktopDisabled
}
func (desktopRefusedDriver) Click(context.Context, desktopdriver.Point, string, int) error {
	return errDesktopDisabled
}
func (desktopRefusedDriver) Drag(context.Context, desktopdriver.Point, desktopdriver.Point) error {
	return errDesktopDisabled
}
func (desktopRefusedDriver) Scroll(context.Context, desktopdriver.Point, int, int) error {
	return errDesktopDisabled
}
func (desktopRefusedDriver) Wait(context.Context, float64) error { return errDesktopDisabled }
func (desktopRefusedDriver) Screenshot(context.Context) (string, error) {
	return "", errDesktopDisabled
}
func (desktopRefusedDriver) Close() error { return nil }

var errDesktopDisabled = fmt.Errorf("computer_use is disabled; pass --enable-desktop to launch the Playwright-backed driver")

func newDesktopDriver(workDir string, enable bool) (desktopdriver.Driver, error) {
	if !enable {
		return desktopRefusedDriver{}, nil
	}
	return desktopdriver.NewPlaywrightDriver(workDir)
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info().Str("addr", addr).Msg("kernelctl: serving /metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("kernelctl: metrics server failed")
		}
	}()
}

func drain(snapshots <-chan loop.Snapshot, errc <-chan error) error {
	var lastErr error
	for snapshots != nil || errc != nil {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				snapshots = nil
				continue
			}
			printSnapshot(snap)
		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			lastErr = err
		}
	}
	return lastErr
}

func printSnapshot(snap loop.Snapshot) {
	line, err := json.Marshal(map[string]any{
		"done":     snap.Done,
		"messages": snap.Response,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernelctl: failed to serialize snapshot: %v\n", err)
		return
	}
	fmt.Println(string(line))
}
