package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/weflow/wxport/internal/progress"
	"github.com/weflow/wxport/internal/wxmsg"
)

// writeBatch bounds how many message objects accumulate before a
// flush; large sessions must not buffer the whole data array.
const writeBatch = 100

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
	"`", "&#96;",
)

func escapeHTML(s string) string      { return htmlEscaper.Replace(s) }
func escapeAttribute(s string) string { return attrEscaper.Replace(s) }

var newlineToBr = strings.NewReplacer("\r\n", "<br />", "\n", "<br />")

// avatarFallback is the single glyph shown when a member has no
// exported avatar.
func avatarFallback(name string) string {
	for _, r := range name {
		return string(r)
	}
	return "?"
}

// htmlItem is one entry of the inlined data array. Keys stay short on
// purpose: the array dominates the file size.
type htmlItem struct {
	Index     int    `json:"i"`
	Timestamp int64  `json:"t"`
	IsSend    int    `json:"s"`
	Avatar    string `json:"a"`
	Body      string `json:"b"`
}

// writeHTML renders the self-contained viewer page. Messages stream
// into an embedded data array in fixed-size batches and the page
// renders them incrementally on scroll.
func (e *Exporter) writeHTML(ctx context.Context, w io.Writer, doc *document, outputPath string) error {
	bw := bufio.NewWriterSize(w, 64*1024)

	title := escapeHTML(doc.SessionName)
	sessionType := "私聊"
	if doc.isGroup() {
		sessionType = "群聊"
	}
	fmt.Fprintf(bw, htmlHead, title, htmlStyles, title,
		len(doc.Messages), sessionType, escapeHTML(formatTime(doc.GeneratedAt.Unix())), len(doc.Messages))

	avatarCache := map[string]string{}
	avatarHTML := func(id, name string) string {
		if cached, ok := avatarCache[id]; ok {
			return cached
		}
		var html string
		var url string
		if doc.Opts.ExportAvatars {
			if member := doc.memberByID(id); member != nil {
				url = member.Avatar
			}
		}
		if url != "" {
			html = `<img src="` + escapeAttribute(url) + `" alt="` + escapeAttribute(name) + `" />`
		} else {
			html = "<span>" + escapeHTML(avatarFallback(name)) + "</span>"
		}
		avatarCache[id] = html
		return html
	}

	buf := make([]json.RawMessage, 0, writeBatch)
	flush := func(last bool) error {
		for i, item := range buf {
			if _, err := bw.Write(item); err != nil {
				return err
			}
			if !last || i < len(buf)-1 {
				if _, err := bw.WriteString(",\n"); err != nil {
					return err
				}
			} else {
				if _, err := bw.WriteString("\n"); err != nil {
					return err
				}
			}
		}
		buf = buf[:0]
		return nil
	}

	for i, m := range doc.Messages {
		if err := ctx.Err(); err != nil {
			return err
		}

		senderName := doc.senderDisplayName(m)
		if m.Row.IsSender {
			senderName = "我"
			if member := doc.memberByID(doc.SelfID); member != nil {
				if name := firstNonEmpty(member.Remark, member.Nickname); name != "" {
					senderName = name
				}
			}
		}

		item := htmlItem{
			Index:     i + 1,
			Timestamp: m.Row.CreateTime,
			IsSend:    boolToInt(m.Row.IsSender),
			Avatar:    avatarHTML(m.Sender, senderName),
			Body:      messageBodyHTML(doc, m, senderName),
		}
		encoded, err := json.Marshal(item)
		if err != nil {
			return err
		}
		buf = append(buf, encoded)
		if len(buf) >= writeBatch || i == len(doc.Messages)-1 {
			if err := flush(i == len(doc.Messages)-1); err != nil {
				return err
			}
		}

		if (i+1)%500 == 0 {
			e.broker.Report(progress.Report{
				RunID:          doc.RunID,
				CurrentSession: doc.Session,
				Phase:          string(PhaseWriting),
				PhaseProgress:  i + 1,
				PhaseTotal:     len(doc.Messages),
			})
		}
	}

	if _, err := bw.WriteString(htmlFoot); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	e.log.Debug("html written", zap.String("path", outputPath), zap.Int("messages", len(doc.Messages)))
	return nil
}

// messageBodyHTML builds the bubble markup for one message: time,
// optional sender line, media element, and text.
func messageBodyHTML(doc *document, m *Message, senderName string) string {
	text := m.Text
	if m.Row.LocalType == wxmsg.RawVoice && doc.Opts.VoiceAsText {
		text = m.Transcript
		if text == "" {
			text = voiceFailurePlaceholder
		}
	}
	// Images and stickers show as the media element alone.
	if m.Media != nil && (m.Row.LocalType == wxmsg.RawImage || m.Row.LocalType == wxmsg.RawEmoji) {
		text = ""
	}

	var media string
	if m.Media != nil && m.Media.RelativePath != "" {
		src := escapeAttribute(m.Media.RelativePath)
		alt := escapeAttribute(wxmsg.TypeName(m.Row.LocalType, m.Content))
		switch m.Media.Kind {
		case "image":
			media = `<img class="message-media image previewable" src="` + src + `" data-full="` + src + `" alt="` + alt + `" />`
		case "emoji":
			media = `<img class="message-media emoji previewable" src="` + src + `" data-full="` + src + `" alt="` + alt + `" />`
		case "voice":
			media = `<audio class="message-media audio" controls src="` + src + `"></audio>`
		case "video":
			poster := ""
			if m.Media.Poster != "" {
				poster = ` poster="` + escapeAttribute(m.Media.Poster) + `"`
			}
			media = `<video class="message-media video" controls preload="metadata"` + poster + ` src="` + src + `"></video>`
		}
	}

	var b strings.Builder
	b.WriteString(`<div class="message-time">`)
	b.WriteString(escapeHTML(formatTime(m.Row.CreateTime)))
	b.WriteString(`</div>`)
	if doc.isGroup() {
		b.WriteString(`<div class="sender-name">`)
		b.WriteString(escapeHTML(senderName))
		b.WriteString(`</div>`)
	}
	b.WriteString(`<div class="message-content">`)
	b.WriteString(media)
	if text != "" {
		b.WriteString(`<div class="message-text">`)
		b.WriteString(newlineToBr.Replace(escapeHTML(text)))
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}
