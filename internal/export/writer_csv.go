package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/weflow/wxport/internal/wxmsg"
)

var weCloneHeader = []string{"id", "MsgSvrID", "type_name", "is_sender", "talker", "msg", "src", "CreateTime"}

// writeWeClone writes the training corpus CSV. Excel on Windows needs
// the BOM and CRLF line endings to open it as UTF-8.
func writeWeClone(w io.Writer, doc *document) error {
	if _, err := w.Write([]byte("\uFEFF")); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(weCloneHeader); err != nil {
		return err
	}

	for i, m := range doc.Messages {
		typeName := wxmsg.WeCloneTypeName(m.Row.LocalType, m.Content)

		talker := doc.senderDisplayName(m)
		if m.Row.IsSender {
			talker = "我"
			if member := doc.memberByID(doc.SelfID); member != nil {
				if name := firstNonEmpty(member.Remark, member.Nickname); name != "" {
					talker = name
				}
			}
		}

		msg := m.Preview
		if m.Row.LocalType == wxmsg.RawVoice && doc.Opts.VoiceAsText {
			msg = m.Transcript
			if msg == "" {
				msg = voiceFailurePlaceholder
			}
		}

		record := []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(i + 1),
			typeName,
			strconv.Itoa(boolToInt(m.Row.IsSender)),
			talker,
			msg,
			weCloneSource(m, typeName),
			time.Unix(m.Row.CreateTime, 0).UTC().Format("2006-01-02T15:04:05.000Z"),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// weCloneSource fills the src column: the exported media file when one
// exists, otherwise whatever locator the raw payload carries.
func weCloneSource(m *Message, typeName string) string {
	if m.Media != nil && m.Media.RelativePath != "" {
		return m.Media.RelativePath
	}
	switch typeName {
	case "image":
		return wxmsg.ImageDatName(m.Content)
	case "sticker":
		return wxmsg.EmojiURL(m.Content)
	case "file":
		if name := wxmsg.ExtractXMLValue(m.Content, "filename"); name != "" {
			return name
		}
		return wxmsg.ExtractXMLValue(m.Content, "title")
	}
	return ""
}
