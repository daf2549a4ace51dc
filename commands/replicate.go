package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/c360studio/tagmirror/backend"
	"github.com/c360studio/tagmirror/entity"
	"github.com/c360studio/tagmirror/events"
	"github.com/c360studio/tagmirror/storage"
	"github.com/c360studio/tagmirror/workflow"
	"github.com/c360studio/tagmirror/workflow/validation"
)

// replicateFlags is the flag surface shared by replicate and plan.
type replicateFlags struct {
	sourceFile  string
	targetFile  string
	outFile     string
	dryRun      bool
	skipExist   bool
	learnNaming bool
	validate    bool
	include     []string
	exclude     []string
	prefix      string
	suffix      string
	delay       time.Duration
	jsonOut     bool
	metricsAddr string
}

func (f *replicateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sourceFile, "source", "", "Source workspace snapshot (JSON)")
	cmd.Flags().StringVar(&f.targetFile, "target", "", "Target workspace snapshot (JSON)")
	cmd.Flags().BoolVar(&f.skipExist, "skip-existing", true, "Skip entities whose exact name already exists in the target")
	cmd.Flags().BoolVar(&f.learnNaming, "learn-naming", false, "Restyle created names to the target's naming convention")
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "Glob patterns of entity names to replicate")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Glob patterns of entity names to leave out")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "Prefix for every created entity name")
	cmd.Flags().StringVar(&f.suffix, "suffix", "", "Suffix for every created entity name")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Emit the result as JSON")
}

func newReplicateCommand(a *app) *cobra.Command {
	f := &replicateFlags{}
	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Replicate a source workspace into a target workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReplicate(cmd, f)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.outFile, "out", "", "Write the post-build target snapshot to this file")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Plan only, create nothing")
	cmd.Flags().BoolVar(&f.validate, "validate", false, "Re-read the target and verify the result")
	cmd.Flags().DurationVar(&f.delay, "delay", 0, "Minimum spacing between create calls (0 = config value)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	return cmd
}

func (a *app) runReplicate(cmd *cobra.Command, f *replicateFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, target, err := a.openWorkspaces(f)
	if err != nil {
		return err
	}

	opts, err := a.buildOptions(f)
	if err != nil {
		return err
	}

	catalog := entity.NewCatalog(a.logger)
	if path := a.cfg.Catalog.Path; path != "" {
		if err := catalog.LoadFile(path); err != nil {
			return err
		}
		if a.cfg.Catalog.Watch {
			if err := catalog.Watch(ctx, path); err != nil {
				a.logger.Warn("catalog watch unavailable", "error", err.Error())
			}
		}
	}

	publisher, err := a.openPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	if f.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: f.metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Warn("metrics server stopped", "error", err.Error())
			}
		}()
		defer server.Close()
		a.logger.Info("metrics exposed", "addr", f.metricsAddr)
	}

	result := workflow.NewOrchestrator(source, target, catalog, opts, publisher, a.logger).Run(ctx)
	a.saveRunHistory(ctx, publisher, result)

	if err := a.printResult(cmd, f, result); err != nil {
		return err
	}
	if f.outFile != "" && !opts.DryRun {
		if err := writeSnapshot(f.outFile, target); err != nil {
			return err
		}
	}
	if !result.Success {
		return fmt.Errorf("replication failed")
	}
	return nil
}

// openWorkspaces loads both snapshots and seeds the in-memory adapters.
// The source side reads through the response cache; the target side stays
// uncached because the builder re-reads it after every create.
func (a *app) openWorkspaces(f *replicateFlags) (backend.Backend, backend.Backend, error) {
	sourcePath, err := resolveSnapshotPath(f.sourceFile, a.cfg.Source, "source")
	if err != nil {
		return nil, nil, err
	}
	targetPath, err := resolveSnapshotPath(f.targetFile, a.cfg.Target, "target")
	if err != nil {
		return nil, nil, err
	}

	srcSnap, err := loadSnapshot(sourcePath)
	if err != nil {
		return nil, nil, err
	}
	applyWorkspace(srcSnap, a.cfg.Source)
	tgtSnap, err := loadSnapshot(targetPath)
	if err != nil {
		return nil, nil, err
	}
	applyWorkspace(tgtSnap, a.cfg.Target)

	if srcSnap.Workspace == tgtSnap.Workspace {
		return nil, nil, fmt.Errorf("source and target identify the same workspace: %s", srcSnap.Workspace.Path())
	}

	var source backend.Backend = openBackend(srcSnap, "src")
	if a.cfg.Cache.TTL > 0 {
		source = backend.NewCache(source, a.cfg.Cache.TTL, a.logger)
	}
	return source, openBackend(tgtSnap, "tgt"), nil
}

func (a *app) buildOptions(f *replicateFlags) (workflow.Options, error) {
	opts := workflow.DefaultOptions()
	opts.SkipExisting = f.skipExist
	opts.LearnNaming = f.learnNaming || a.cfg.Naming.Learn
	opts.Validate = f.validate
	opts.DryRun = f.dryRun
	opts.Include = f.include
	opts.Exclude = f.exclude
	opts.RequestDelay = a.cfg.Rate.RequestDelay
	opts.MaxRetries = a.cfg.Rate.MaxRetries
	opts.BackoffBase = a.cfg.Rate.BackoffBase

	opts.NamePrefix = a.cfg.Naming.Prefix
	if f.prefix != "" {
		opts.NamePrefix = f.prefix
	}
	opts.NameSuffix = a.cfg.Naming.Suffix
	if f.suffix != "" {
		opts.NameSuffix = f.suffix
	}
	if f.delay > 0 {
		opts.RequestDelay = f.delay
	}

	if err := opts.ValidatePatterns(); err != nil {
		return opts, err
	}
	return opts, nil
}

// saveRunHistory records the result in the NATS KV run history when a
// server connection is available. History failures never fail the run.
func (a *app) saveRunHistory(ctx context.Context, publisher *events.Publisher, result *workflow.Result) {
	if !publisher.Enabled() {
		return
	}
	js, err := jetstream.New(publisher.Conn())
	if err != nil {
		a.logger.Warn("run history unavailable", "error", err.Error())
		return
	}
	store, err := storage.NewStore(ctx, js)
	if err != nil {
		a.logger.Warn("run history unavailable", "error", err.Error())
		return
	}
	if err := store.SaveRun(ctx, result); err != nil {
		a.logger.Warn("run history write failed", "error", err.Error())
		return
	}
	a.logger.Info("run recorded", "session_id", result.SessionID)
}

func (a *app) openPublisher() (*events.Publisher, error) {
	var pubOpts []events.Option
	if a.cfg.Events.SubjectPrefix != "" {
		pubOpts = append(pubOpts, events.WithSubjectPrefix(a.cfg.Events.SubjectPrefix))
	}
	return events.Connect(a.cfg.Events.URL, a.logger, pubOpts...)
}

func (a *app) printResult(cmd *cobra.Command, f *replicateFlags, result *workflow.Result) error {
	out := cmd.OutOrStdout()
	if f.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	status := "SUCCEEDED"
	if !result.Success {
		status = "FAILED"
	}
	fmt.Fprintf(out, "Replication %s (%s)\n", status, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  %s -> %s\n", result.SourceWorkspace, result.TargetWorkspace)
	fmt.Fprintf(out, "  expected %d, created %d, skipped %d, failed %d\n",
		result.Summary.ExpectedCount, result.Summary.CreatedCount,
		result.Summary.SkippedCount, result.Summary.FailedCount)

	for _, e := range result.Created {
		fmt.Fprintf(out, "  + %s %q (%s -> %s)\n", e.Kind, e.Name, e.SourceID, e.TargetID)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  ! [%s] %s\n", e.Kind, e.Message)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "  ~ %s\n", w)
	}
	if result.ValidationReport != nil {
		fmt.Fprint(out, "\n", validation.FormatReport(result.ValidationReport))
	}
	return nil
}
