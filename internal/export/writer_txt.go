package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/weflow/wxport/internal/wxmsg"
)

// txtColumn pairs a selectable column id with its header label.
type txtColumn struct {
	id    string
	label string
}

// txtColumnDefinitions fixes both the set of selectable columns and
// their output order.
var txtColumnDefinitions = []txtColumn{
	{"index", "序号"},
	{"time", "时间"},
	{"senderRole", "发送者身份"},
	{"messageType", "消息类型"},
	{"content", "内容"},
	{"senderNickname", "发送者昵称"},
	{"senderWxid", "发送者微信ID"},
	{"senderRemark", "发送者备注"},
}

var defaultTxtColumns = []string{"index", "time", "senderRole", "messageType", "content"}

// normalizeTxtColumns filters the selection against the known columns
// and restores the canonical order. Unknown ids drop out; an empty or
// fully unknown selection falls back to the default set.
func normalizeTxtColumns(columns []string) []string {
	source := columns
	if len(source) == 0 {
		source = defaultTxtColumns
	}
	selected := map[string]bool{}
	for _, id := range source {
		if id != "" {
			selected[id] = true
		}
	}
	var ordered []string
	for _, def := range txtColumnDefinitions {
		if selected[def.id] {
			ordered = append(ordered, def.id)
		}
	}
	if len(ordered) == 0 {
		return defaultTxtColumns
	}
	return ordered
}

// sanitizeTxtValue keeps one logical row per line.
func sanitizeTxtValue(value string) string {
	value = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(value)
	return strings.TrimSpace(value)
}

// writeTXT writes either the chronological transcript form or, when a
// column selection is present, a tab separated table.
func writeTXT(w io.Writer, doc *document) error {
	if doc.Opts.CompactColumns || len(doc.Opts.TxtColumns) > 0 {
		return writeColumnarTXT(w, doc)
	}
	return writePlainTXT(w, doc)
}

func writePlainTXT(w io.Writer, doc *document) error {
	bw := bufio.NewWriter(w)
	for i, m := range doc.Messages {
		if _, err := bw.WriteString(formatTime(m.Row.CreateTime) + " '" + doc.senderRole(m) + "'\n"); err != nil {
			return err
		}
		if _, err := bw.WriteString(plainContent(doc.Opts, m) + "\n"); err != nil {
			return err
		}
		if i < len(doc.Messages)-1 {
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func writeColumnarTXT(w io.Writer, doc *document) error {
	columns := normalizeTxtColumns(doc.Opts.TxtColumns)
	// Compact mode pins the five-column layout regardless of any
	// custom selection.
	if doc.Opts.CompactColumns {
		columns = defaultTxtColumns
	}

	bw := bufio.NewWriter(w)
	labels := make([]string, len(columns))
	for i, id := range columns {
		for _, def := range txtColumnDefinitions {
			if def.id == id {
				labels[i] = def.label
				break
			}
		}
	}
	if _, err := bw.WriteString(strings.Join(labels, "\t") + "\n"); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for i, m := range doc.Messages {
		member := doc.memberByID(m.Sender)
		for ci, id := range columns {
			var value string
			switch id {
			case "index":
				value = strconv.Itoa(i + 1)
			case "time":
				value = formatTime(m.Row.CreateTime)
			case "senderRole":
				value = doc.senderRole(m)
			case "messageType":
				value = wxmsg.TypeName(m.Row.LocalType, m.Content)
			case "content":
				value = plainContent(doc.Opts, m)
			case "senderNickname":
				if member != nil {
					value = firstNonEmpty(member.Nickname, m.Sender)
				} else {
					value = m.Sender
				}
			case "senderWxid":
				value = m.Sender
			case "senderRemark":
				if member != nil {
					value = member.Remark
				}
			}
			row[ci] = sanitizeTxtValue(value)
		}
		if _, err := bw.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
