package export

import (
	"context"

	"github.com/weflow/wxport/internal/store"
)

// Cursor streams raw rows in batches. An empty batch marks the end of
// the stream.
type Cursor interface {
	Fetch(ctx context.Context) ([]store.RawRow, error)
	Close()
}

// MessageStore is the read side of the chat database.
type MessageStore interface {
	OpenCursor(session string, batchSize int, asc bool, start, end int64) Cursor
	CountMessages(ctx context.Context, session string, start, end int64) (int, error)
	CountMessagesByType(ctx context.Context, session string, start, end int64) (map[int64]int, error)
}

// ContactResolver provides contact and group metadata.
// *store.ChatDB satisfies it directly.
type ContactResolver interface {
	Contact(ctx context.Context, username string) (*store.ContactDetail, error)
	DisplayNames(ctx context.Context, usernames []string) (map[string]string, error)
	AvatarURLs(ctx context.Context, usernames []string) (map[string]string, error)
	GroupMembers(ctx context.Context, roomID string) ([]string, error)
	RoomExtBuffer(ctx context.Context, roomID string) ([]byte, error)
}

// MediaExporter decrypts, copies, or downloads one row's media into
// the output tree and returns its relative location.
type MediaExporter interface {
	ExportMedia(ctx context.Context, session string, row store.RawRow, mediaDir string) (*MediaItem, error)
}

// Transcriber converts voice rows to text.
type Transcriber interface {
	// EnsureModel makes the speech model available, reporting
	// download progress via the callback.
	EnsureModel(ctx context.Context, onProgress func(done, total int64)) error
	Transcribe(ctx context.Context, session string, row store.RawRow) (string, error)
}

// TranscriptCache persists transcription results across runs.
// *store.CacheDB satisfies it directly.
type TranscriptCache interface {
	GetTranscript(ctx context.Context, session string, localID int64) (string, bool, error)
	PutTranscript(ctx context.Context, t store.Transcript) error
}
