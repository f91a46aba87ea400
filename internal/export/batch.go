package export

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/weflow/wxport/internal/progress"
	"github.com/weflow/wxport/internal/sched"
)

var unsafeNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// safeFileName makes a display name usable as a file name on every
// supported filesystem.
func safeFileName(name string) string {
	cleaned := unsafeNameChars.ReplaceAllString(name, "_")
	cleaned = strings.TrimRight(cleaned, ".")
	if cleaned == "" {
		cleaned = "_"
	}
	return cleaned
}

func formatExt(f Format) string {
	switch f {
	case FormatChatlabJSONL:
		return ".jsonl"
	case FormatTXT:
		return ".txt"
	case FormatWeClone:
		return ".csv"
	case FormatHTML:
		return ".html"
	}
	return ".json"
}

// ExportSessions exports each session into outDir and keeps going past
// per-session failures. Success reflects the batch machinery, not the
// individual sessions; the counts carry those.
func (e *Exporter) ExportSessions(ctx context.Context, sessions []string, outDir string, opts Options) BatchResult {
	if len(sessions) == 0 {
		return BatchResult{Success: true}
	}
	if err := e.cfg.Validate(); err != nil {
		e.log.Error("batch export config", zap.Error(err))
		return BatchResult{FailCount: len(sessions)}
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		e.log.Error("create output dir", zap.String("dir", outDir), zap.Error(err))
		return BatchResult{FailCount: len(sessions)}
	}

	mediaEnabled := opts.mediaEnabled()
	layout := opts.Layout
	if !mediaEnabled {
		// Without media there is nothing to collide on.
		layout = LayoutShared
	} else if layout == "" {
		layout = LayoutPerSession
	}

	// Concurrent sessions writing into one shared media dir would
	// race on file names, so shared layout with media serializes.
	sessionConcurrency := sched.Clamp(opts.Concurrency, defaultConcurrency, sched.MaxConcurrency)
	if mediaEnabled && layout == LayoutShared {
		sessionConcurrency = 1
	}

	var mu sync.Mutex
	completed, successCount, failCount := 0, 0, 0

	_, _ = sched.Map(ctx, sessions, sessionConcurrency, func(ctx context.Context, session string, _ int) (struct{}, error) {
		names, err := e.contacts.DisplayNames(ctx, []string{session})
		displayName := session
		if err == nil && names[session] != "" {
			displayName = names[session]
		}

		safeName := safeFileName(displayName)
		sessionDir := outDir
		if layout == LayoutPerSession {
			sessionDir = filepath.Join(outDir, safeName)
		}
		outputPath := filepath.Join(sessionDir, safeName+formatExt(opts.Format))

		result := e.ExportSession(ctx, session, outputPath, opts)

		mu.Lock()
		if result.Success {
			successCount++
		} else {
			e.log.Error("session export failed",
				zap.String("session", session),
				zap.Error(result.Error))
			failCount++
		}
		completed++
		current := completed
		mu.Unlock()

		e.broker.Report(progress.Report{
			CurrentSession: displayName,
			Phase:          string(PhaseExporting),
			Current:        current,
			Total:          len(sessions),
		})
		return struct{}{}, nil
	})

	e.broker.Complete(progress.Report{
		Phase:   string(PhaseComplete),
		Current: len(sessions),
		Total:   len(sessions),
	})
	return BatchResult{Success: true, SuccessCount: successCount, FailCount: failCount}
}
