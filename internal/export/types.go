package export

import (
	"github.com/weflow/wxport/internal/store"
	"github.com/weflow/wxport/internal/wxmsg"
)

// Format selects the output file format.
type Format string

const (
	FormatChatlab      Format = "chatlab"
	FormatChatlabJSONL Format = "chatlab-jsonl"
	FormatJSON         Format = "json"
	FormatHTML         Format = "html"
	FormatTXT          Format = "txt"
	FormatWeClone      Format = "weclone"
)

// Layout controls where batch exports place media next to their
// output files.
type Layout string

const (
	LayoutShared     Layout = "shared"
	LayoutPerSession Layout = "per-session"
)

// NamePreference selects which name field wins when rendering a
// sender.
type NamePreference string

const (
	PreferGroupNickname NamePreference = "group-nickname"
	PreferRemark        NamePreference = "remark"
	PreferNickname      NamePreference = "nickname"
)

// Options configures one export run.
type Options struct {
	Format Format
	// Start and End bound rows by create_time; 0 means unbounded.
	Start int64
	End   int64

	ExportMedia   bool
	ExportImages  bool
	ExportVoices  bool
	ExportVideos  bool
	ExportEmojis  bool
	ExportAvatars bool
	VoiceAsText   bool

	// Concurrency bounds media workers; 0 picks the default.
	Concurrency int

	// TxtColumns selects the columnar TXT subset; empty means the
	// default column set.
	TxtColumns     []string
	CompactColumns bool

	Layout         Layout
	NamePreference NamePreference
}

func (o Options) mediaEnabled() bool {
	return o.ExportMedia || o.ExportImages || o.ExportVoices || o.ExportVideos || o.ExportEmojis
}

func (o Options) kindEnabled(localType int64) bool {
	switch localType {
	case wxmsg.RawImage:
		return o.ExportMedia || o.ExportImages
	case wxmsg.RawVoice:
		return o.ExportMedia || o.ExportVoices
	case wxmsg.RawVideo:
		return o.ExportMedia || o.ExportVideos
	case wxmsg.RawEmoji:
		return o.ExportMedia || o.ExportEmojis
	}
	return false
}

// MediaItem is a decrypted or downloaded media file placed under the
// output directory.
type MediaItem struct {
	Kind         string
	RelativePath string
	// Poster is a data URL for video thumbnails, used by the HTML
	// format only.
	Poster string
}

// Message is one fully decoded and enriched row, ready for rendering.
type Message struct {
	Row     store.RawRow
	Type    wxmsg.Type
	Content string
	// Preview is the short one-line form used by the structured
	// formats.
	Preview string
	// Text is the full plain rendering used by the flat formats.
	Text string
	// Sender is the effective sender id after revoke attribution.
	Sender       string
	Transcript   string
	Media        *MediaItem
	Records      []wxmsg.RecordItem
	TransferNote string
}

// Member describes one participant of the exported session.
type Member struct {
	ID            string
	Nickname      string
	Remark        string
	GroupNickname string
	Avatar        string
}

// Merge fills empty fields from other; existing values always win.
func (m *Member) Merge(other Member) {
	if m.Nickname == "" {
		m.Nickname = other.Nickname
	}
	if m.Remark == "" {
		m.Remark = other.Remark
	}
	if m.GroupNickname == "" {
		m.GroupNickname = other.GroupNickname
	}
	if m.Avatar == "" {
		m.Avatar = other.Avatar
	}
}

// DisplayName applies the configured preference chain, always falling
// back to the raw id. An unset preference means remark-first.
func (m Member) DisplayName(pref NamePreference) string {
	switch pref {
	case PreferGroupNickname:
		return firstNonEmpty(m.GroupNickname, m.Remark, m.Nickname, m.ID)
	case PreferNickname:
		return firstNonEmpty(m.Nickname, m.ID)
	default:
		return firstNonEmpty(m.Remark, m.Nickname, m.ID)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Result is the outcome of one session export. Entry points return it
// instead of an error so batch runs can always continue.
type Result struct {
	Success bool
	Error   error
	// Path is the written output file on success.
	Path string
}

// BatchResult aggregates a multi-session export.
type BatchResult struct {
	Success      bool
	SuccessCount int
	FailCount    int
}

// Stats is the pre-run estimate shown before a large export.
type Stats struct {
	TotalMessages     int
	VoiceMessages     int
	CachedTranscripts int
	MediaMessages     int
	// EstimatedSeconds is a rough wall-clock guess dominated by
	// uncached voice transcription.
	EstimatedSeconds int
}
