package export

import (
	"bufio"
	"encoding/json"
	"io"
	"regexp"

	"github.com/weflow/wxport/internal/wxmsg"
)

const (
	chatlabVersion = "0.0.2"
	headerVersion  = "1.0.3"
	generatorName  = "wxport"
)

type chatlabHeader struct {
	Version    string `json:"version"`
	ExportedAt int64  `json:"exportedAt"`
	Generator  string `json:"generator"`
}

type chatlabMeta struct {
	Name        string `json:"name"`
	Platform    string `json:"platform"`
	Type        string `json:"type"`
	GroupID     string `json:"groupId,omitempty"`
	GroupAvatar string `json:"groupAvatar,omitempty"`
}

type chatlabMember struct {
	PlatformID    string `json:"platformId"`
	AccountName   string `json:"accountName"`
	GroupNickname string `json:"groupNickname,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
}

type chatlabRecord struct {
	Sender      string `json:"sender"`
	AccountName string `json:"accountName"`
	Timestamp   int64  `json:"timestamp"`
	Type        int    `json:"type"`
	Content     string `json:"content"`
	Avatar      string `json:"avatar,omitempty"`
}

type chatlabMessage struct {
	Sender        string          `json:"sender"`
	AccountName   string          `json:"accountName"`
	GroupNickname string          `json:"groupNickname,omitempty"`
	Timestamp     int64           `json:"timestamp"`
	Type          int             `json:"type"`
	Content       string          `json:"content"`
	ChatRecords   []chatlabRecord `json:"chatRecords,omitempty"`
}

type chatlabExport struct {
	Chatlab  chatlabHeader    `json:"chatlab"`
	Meta     chatlabMeta      `json:"meta"`
	Members  []chatlabMember  `json:"members"`
	Messages []chatlabMessage `json:"messages"`
}

func buildChatlab(doc *document) chatlabExport {
	meta := chatlabMeta{
		Name:     doc.SessionName,
		Platform: "wechat",
		Type:     "private",
	}
	if doc.isGroup() {
		meta.Type = "group"
		meta.GroupID = doc.Session
	}

	members := make([]chatlabMember, 0, len(doc.Members))
	memberSeen := map[string]bool{}
	for _, m := range doc.Members {
		cm := chatlabMember{
			PlatformID:    m.ID,
			AccountName:   firstNonEmpty(m.Nickname, m.ID),
			GroupNickname: m.GroupNickname,
		}
		if doc.Opts.ExportAvatars {
			cm.Avatar = m.Avatar
		}
		members = append(members, cm)
		memberSeen[m.ID] = true
	}

	messages := make([]chatlabMessage, 0, len(doc.Messages))
	for _, m := range doc.Messages {
		cm := chatlabMessage{
			Sender:      m.Sender,
			AccountName: m.Sender,
			Timestamp:   m.Row.CreateTime,
			Type:        wxmsg.ChatlabCode(m.Type),
			Content:     previewContent(doc.Opts, m),
		}
		if member := doc.memberByID(m.Sender); member != nil {
			cm.AccountName = firstNonEmpty(member.Nickname, m.Sender)
			cm.GroupNickname = member.GroupNickname
		}

		for _, rec := range m.Records {
			ts := rec.Timestamp
			if ts == 0 {
				ts = m.Row.CreateTime
			}
			sender := rec.SourceName
			if sender == "" {
				sender = "unknown"
			}
			cr := chatlabRecord{
				Sender:      sender,
				AccountName: sender,
				Timestamp:   ts,
				Type:        wxmsg.ChatlabCode(rec.Type),
				Content:     rec.DisplayText,
			}
			if doc.Opts.ExportAvatars {
				cr.Avatar = rec.SourceHeadURL
			}
			cm.ChatRecords = append(cm.ChatRecords, cr)

			// Forwarded records can name people outside the session.
			if rec.SourceName != "" && !memberSeen[rec.SourceName] {
				memberSeen[rec.SourceName] = true
				extra := chatlabMember{PlatformID: rec.SourceName, AccountName: rec.SourceName}
				if doc.Opts.ExportAvatars {
					extra.Avatar = rec.SourceHeadURL
				}
				members = append(members, extra)
			}
		}
		messages = append(messages, cm)
	}

	return chatlabExport{
		Chatlab: chatlabHeader{
			Version:    chatlabVersion,
			ExportedAt: doc.GeneratedAt.Unix(),
			Generator:  generatorName,
		},
		Meta:     meta,
		Members:  members,
		Messages: messages,
	}
}

func writeChatlab(w io.Writer, doc *document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(buildChatlab(doc))
}

// writeChatlabJSONL streams the same data one object per line, tagged
// so consumers can split headers, members, and messages.
func writeChatlabJSONL(w io.Writer, doc *document) error {
	export := buildChatlab(doc)

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	type jsonlHeader struct {
		Kind    string        `json:"_type"`
		Chatlab chatlabHeader `json:"chatlab"`
		Meta    chatlabMeta   `json:"meta"`
	}
	type jsonlMember struct {
		Kind string `json:"_type"`
		chatlabMember
	}
	type jsonlMessage struct {
		Kind string `json:"_type"`
		chatlabMessage
	}

	if err := enc.Encode(jsonlHeader{Kind: "header", Chatlab: export.Chatlab, Meta: export.Meta}); err != nil {
		return err
	}
	for _, m := range export.Members {
		if err := enc.Encode(jsonlMember{Kind: "member", chatlabMember: m}); err != nil {
			return err
		}
	}
	for _, m := range export.Messages {
		if err := enc.Encode(jsonlMessage{Kind: "message", chatlabMessage: m}); err != nil {
			return err
		}
	}
	return bw.Flush()
}

var msgSourceRe = regexp.MustCompile(`(?is)<msgsource>.*?</msgsource>`)

type detailedSession struct {
	ID           string `json:"wxid"`
	Nickname     string `json:"nickname"`
	Remark       string `json:"remark"`
	DisplayName  string `json:"displayName"`
	Type         string `json:"type"`
	LastTime     int64  `json:"lastTimestamp"`
	MessageCount int    `json:"messageCount"`
	Avatar       string `json:"avatar,omitempty"`
}

type detailedMessage struct {
	LocalID           int    `json:"localId"`
	CreateTime        int64  `json:"createTime"`
	FormattedTime     string `json:"formattedTime"`
	Type              string `json:"type"`
	LocalType         int64  `json:"localType"`
	Content           string `json:"content"`
	IsSend            int    `json:"isSend"`
	SenderUsername    string `json:"senderUsername"`
	SenderDisplayName string `json:"senderDisplayName"`
	Source            string `json:"source"`
	SenderAvatarKey   string `json:"senderAvatarKey"`
}

type detailedExport struct {
	Header   chatlabHeader     `json:"wxport"`
	Session  detailedSession   `json:"session"`
	Messages []detailedMessage `json:"messages"`
	Avatars  map[string]string `json:"avatars,omitempty"`
}

// writeDetailedJSON writes the verbose per-message format with
// formatted times and resolved sender names.
func writeDetailedJSON(w io.Writer, doc *document) error {
	sessionType := "私聊"
	if doc.isGroup() {
		sessionType = "群聊"
	}

	var lastTime int64
	messages := make([]detailedMessage, 0, len(doc.Messages))
	for i, m := range doc.Messages {
		if m.Row.CreateTime > lastTime {
			lastTime = m.Row.CreateTime
		}
		messages = append(messages, detailedMessage{
			LocalID:           i + 1,
			CreateTime:        m.Row.CreateTime,
			FormattedTime:     formatTime(m.Row.CreateTime),
			Type:              wxmsg.TypeName(m.Row.LocalType, m.Content),
			LocalType:         m.Row.LocalType,
			Content:           previewContent(doc.Opts, m),
			IsSend:            boolToInt(m.Row.IsSender),
			SenderUsername:    m.Sender,
			SenderDisplayName: doc.senderDisplayName(m),
			Source:            msgSourceRe.FindString(m.Content),
			SenderAvatarKey:   m.Sender,
		})
	}

	export := detailedExport{
		Header: chatlabHeader{
			Version:    headerVersion,
			ExportedAt: doc.GeneratedAt.Unix(),
			Generator:  generatorName,
		},
		Session: detailedSession{
			ID:           doc.Session,
			Nickname:     doc.SessionName,
			DisplayName:  doc.SessionName,
			Type:         sessionType,
			LastTime:     lastTime,
			MessageCount: len(messages),
		},
		Messages: messages,
	}

	if member := doc.memberByID(doc.Session); member != nil {
		export.Session.Nickname = firstNonEmpty(member.Nickname, doc.SessionName)
		export.Session.Remark = member.Remark
	}

	if doc.Opts.ExportAvatars {
		avatars := map[string]string{}
		for _, m := range doc.Members {
			if m.Avatar != "" {
				avatars[m.ID] = m.Avatar
			}
		}
		if len(avatars) > 0 {
			export.Avatars = avatars
			export.Session.Avatar = avatars[doc.Session]
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(export)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
