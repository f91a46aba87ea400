package store

// RawRow is one message row as stored in the chat database, before any
// decoding or classification.
type RawRow struct {
	LocalID         int64
	ServerID        int64
	LocalType       int64
	CreateTime      int64
	Content         string
	CompressContent string
	Sender          string
	IsSender        bool
}

// ContactDetail carries the name fields a contact row may provide.
type ContactDetail struct {
	Username string
	Nickname string
	Remark   string
	Alias    string
	Avatar   string
}

// Transcript is a cached voice-to-text result keyed by message row.
type Transcript struct {
	Session string
	LocalID int64
	Text    string
}

// Run is one export invocation recorded in the cache database.
type Run struct {
	ID        string
	Format    string
	Sessions  int
	StartedAt int64
	// FinishedAt stays 0 until the run completes.
	FinishedAt   int64
	SuccessCount int
	FailCount    int
}
