package export

import (
	"context"

	"github.com/weflow/wxport/internal/wxmsg"
)

// Counter extends the transcript cache with the bulk check used by
// pre-run estimates.
type Counter interface {
	CountTranscripts(ctx context.Context, session string, localIDs []int64) (int, error)
}

// Per-message cost guesses in seconds, dominated by uncached voice
// transcription.
const (
	voiceCostSeconds = 3
	mediaCostSeconds = 1
)

// SessionStats produces the pre-run estimate for one session without
// touching media or voice services.
func (e *Exporter) SessionStats(ctx context.Context, session string, opts Options) (*Stats, error) {
	total, err := e.store.CountMessages(ctx, session, opts.Start, opts.End)
	if err != nil {
		return nil, err
	}
	byType, err := e.store.CountMessagesByType(ctx, session, opts.Start, opts.End)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalMessages: total,
		VoiceMessages: byType[wxmsg.RawVoice],
		MediaMessages: byType[wxmsg.RawImage] + byType[wxmsg.RawVoice] +
			byType[wxmsg.RawVideo] + byType[wxmsg.RawEmoji],
	}

	if opts.VoiceAsText && stats.VoiceMessages > 0 {
		if counter, ok := e.cache.(Counter); ok && counter != nil {
			ids, err := e.voiceLocalIDs(ctx, session, opts)
			if err == nil {
				if cached, err := counter.CountTranscripts(ctx, session, ids); err == nil {
					stats.CachedTranscripts = cached
				}
			}
		}
	}

	uncachedVoice := 0
	if opts.VoiceAsText {
		uncachedVoice = stats.VoiceMessages - stats.CachedTranscripts
	}
	stats.EstimatedSeconds = uncachedVoice * voiceCostSeconds
	if opts.mediaEnabled() {
		stats.EstimatedSeconds += stats.MediaMessages * mediaCostSeconds
	}
	return stats, nil
}

// voiceLocalIDs streams just the voice rows' ids for the cache check.
func (e *Exporter) voiceLocalIDs(ctx context.Context, session string, opts Options) ([]int64, error) {
	cur := e.store.OpenCursor(session, cursorBatchSize, true, opts.Start, opts.End)
	defer cur.Close()

	var ids []int64
	for {
		batch, err := cur.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return ids, nil
		}
		for _, row := range batch {
			if row.LocalType == wxmsg.RawVoice {
				ids = append(ids, row.LocalID)
			}
		}
	}
}
