package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weflow/wxport/internal/config"
	"github.com/weflow/wxport/internal/export"
	"github.com/weflow/wxport/internal/progress"
	"github.com/weflow/wxport/internal/store"
)

// runner executes one CLI request against the wired subsystems and
// returns the process exit code.
type runner struct {
	req      Request
	cfg      *config.Config
	exporter *export.Exporter
	cache    *store.CacheDB
	broker   *progress.Broker
	log      *zap.Logger
}

func (r *runner) run(ctx context.Context) int {
	switch r.req.Command {
	case "export":
		return r.runExport(ctx)
	case "stats":
		return r.runStats(ctx)
	case "runs":
		return r.runHistory(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", r.req.Command)
		return 1
	}
}

// options merges the request's flags over the configured defaults.
// Config defaults can only switch features on; flags add to them.
func (r *runner) options() export.Options {
	opts := r.req.Options
	if opts.Format == "" {
		opts.Format = export.Format(r.cfg.Export.Format)
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = r.cfg.Export.Concurrency
	}
	opts.ExportMedia = opts.ExportMedia || r.cfg.Export.Media
	opts.ExportAvatars = opts.ExportAvatars || r.cfg.Export.Avatars
	opts.VoiceAsText = opts.VoiceAsText || r.cfg.Export.VoiceAsText
	return opts
}

func (r *runner) outDir() string {
	if r.req.OutDir != "" {
		return r.req.OutDir
	}
	if r.cfg.Export.OutputDir != "" {
		return r.cfg.Export.OutputDir
	}
	return "export"
}

func (r *runner) runExport(ctx context.Context) int {
	opts := r.options()

	events, unsub := r.broker.Subscribe("export.", 64)
	stop := make(chan struct{})
	go printProgress(events, stop)
	defer func() {
		unsub()
		close(stop)
	}()

	runID := uuid.NewString()
	if err := r.cache.RecordRun(ctx, store.Run{
		ID:        runID,
		Format:    string(opts.Format),
		Sessions:  len(r.req.Sessions),
		StartedAt: time.Now().Unix(),
	}); err != nil {
		r.log.Warn("record run", zap.Error(err))
	}

	var success, fail int
	if r.req.OutputFile != "" && len(r.req.Sessions) == 1 {
		res := r.exporter.ExportSession(ctx, r.req.Sessions[0], r.req.OutputFile, opts)
		if res.Success {
			success = 1
		} else {
			fail = 1
			fmt.Fprintf(os.Stderr, "error: %v\n", res.Error)
		}
	} else {
		res := r.exporter.ExportSessions(ctx, r.req.Sessions, r.outDir(), opts)
		success, fail = res.SuccessCount, res.FailCount
	}

	if err := r.cache.FinishRun(ctx, runID, success, fail); err != nil {
		r.log.Warn("finish run", zap.Error(err))
	}

	if r.req.JSON {
		outputJSON(map[string]any{
			"runId":        runID,
			"successCount": success,
			"failCount":    fail,
		})
	} else {
		fmt.Printf("Exported %d/%d sessions", success, success+fail)
		if r.req.OutputFile == "" {
			fmt.Printf(" to %s", r.outDir())
		}
		fmt.Println()
	}
	if fail > 0 {
		return 1
	}
	return 0
}

func (r *runner) runStats(ctx context.Context) int {
	opts := r.options()

	type sessionStats struct {
		Session string `json:"session"`
		*export.Stats
	}
	var all []sessionStats
	for _, session := range r.req.Sessions {
		stats, err := r.exporter.SessionStats(ctx, session, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", session, err)
			return 1
		}
		all = append(all, sessionStats{Session: session, Stats: stats})
	}

	if r.req.JSON {
		outputJSON(all)
		return 0
	}
	for _, s := range all {
		fmt.Printf("%s\n", s.Session)
		fmt.Printf("  messages:  %d\n", s.TotalMessages)
		fmt.Printf("  voice:     %d (%d cached)\n", s.VoiceMessages, s.CachedTranscripts)
		fmt.Printf("  media:     %d\n", s.MediaMessages)
		fmt.Printf("  estimate:  ~%ds\n", s.EstimatedSeconds)
	}
	return 0
}

func (r *runner) runHistory(ctx context.Context) int {
	runs, err := r.cache.LastRuns(ctx, r.req.RunsLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if r.req.JSON {
		outputJSON(runs)
		return 0
	}
	if len(runs) == 0 {
		fmt.Println("No export runs recorded.")
		return 0
	}
	for _, run := range runs {
		state := fmt.Sprintf("ok=%d fail=%d", run.SuccessCount, run.FailCount)
		if run.FinishedAt == 0 {
			state = "running"
		}
		fmt.Printf("%-36s %-14s %3d sessions  %s  %s\n",
			run.ID, run.Format, run.Sessions,
			time.Unix(run.StartedAt, 0).Format("2006-01-02 15:04"),
			state)
	}
	return 0
}

// printProgress mirrors broker events onto stderr until stop closes.
// Only batch-level reports print; per-phase detail stays in the log.
func printProgress(events <-chan progress.Event, stop <-chan struct{}) {
	for {
		select {
		case evt := <-events:
			if evt.Kind == progress.KindReport && evt.Report.Total > 0 {
				fmt.Fprintf(os.Stderr, "[%d/%d] %s\n",
					evt.Report.Current, evt.Report.Total, evt.Report.CurrentSession)
			}
		case <-stop:
			return
		}
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
