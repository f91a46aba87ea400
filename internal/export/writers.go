package export

import (
	"strings"
	"time"

	"github.com/weflow/wxport/internal/wxmsg"
)

const timeLayout = "2006-01-02 15:04:05"

// voiceFailurePlaceholder stands in when transcription was requested
// but produced nothing for a row.
const voiceFailurePlaceholder = "[语音消息 - 转文字失败]"

func formatTime(ts int64) string {
	return time.Unix(ts, 0).Format(timeLayout)
}

// annotateTransfer folds the resolved party description into the
// transfer placeholder.
func annotateTransfer(text, note string) string {
	if note == "" || !strings.HasPrefix(text, "[转账]") {
		return text
	}
	return strings.Replace(text, "[转账]", "[转账] ("+note+")", 1)
}

func (d *document) isGroup() bool {
	return strings.HasSuffix(d.Session, "@chatroom")
}

func (d *document) memberByID(id string) *Member {
	for _, m := range d.Members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// senderRole is the short identity used by the flat formats: 我 for own
// rows, then remark over nickname over the raw id.
func (d *document) senderRole(m *Message) string {
	if m.Row.IsSender {
		return "我"
	}
	if member := d.memberByID(m.Sender); member != nil {
		if name := firstNonEmpty(member.Remark, member.Nickname); name != "" {
			return name
		}
	}
	return m.Sender
}

func (d *document) senderDisplayName(m *Message) string {
	if member := d.memberByID(m.Sender); member != nil {
		return member.DisplayName(d.Opts.NamePreference)
	}
	return m.Sender
}

// previewContent is the structured-format content column: transcript
// for transcribed voice rows, the exported media path when one exists,
// otherwise the one-line preview.
func previewContent(opts Options, m *Message) string {
	if m.Row.LocalType == wxmsg.RawVoice && opts.VoiceAsText {
		if m.Transcript != "" {
			return m.Transcript
		}
		return voiceFailurePlaceholder
	}
	if m.Media != nil && m.Media.RelativePath != "" {
		return m.Media.RelativePath
	}
	return m.Preview
}

// plainContent is the flat-format content column. Transcribed voice
// rows keep their text rendering, which already carries the
// transcript; everything else substitutes the media path when present.
func plainContent(opts Options, m *Message) string {
	if m.Row.LocalType == wxmsg.RawVoice && opts.VoiceAsText {
		return m.Text
	}
	if m.Media != nil && m.Media.RelativePath != "" {
		return m.Media.RelativePath
	}
	return m.Text
}
