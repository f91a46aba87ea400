// Package wxmsg classifies raw chat rows into canonical message types
// and renders their markup payloads into readable text. All parsing is
// best-effort: malformed markup degrades to a bracketed placeholder,
// never an error.
package wxmsg

import (
	"regexp"
	"strconv"
)

// Type is the canonical message kind shared by top-level rows and
// forwarded-record sub-items.
type Type int

const (
	Text Type = iota
	Image
	Voice
	Video
	Card
	Emoji
	Location
	Link
	File
	Record
	MiniProgram
	Quote
	Transfer
	Voip
	System
	Other
)

// Raw type codes as stored in the message table. The two large codes
// are producer aliases for system and quote messages.
const (
	RawText     = 1
	RawImage    = 3
	RawVoice    = 34
	RawCard     = 42
	RawVideo    = 43
	RawEmoji    = 47
	RawLocation = 48
	RawApp      = 49
	RawVoip     = 50
	RawSystem   = 10000
	RawPat      = 266287972401
	RawQuoteAlt = 244813135921
)

var innerTypeRe = regexp.MustCompile(`(?i)<type>(\d+)</type>`)

var rawTypeTable = map[int64]Type{
	RawText:     Text,
	RawImage:    Image,
	RawVoice:    Voice,
	RawCard:     Card,
	RawVideo:    Video,
	RawEmoji:    Emoji,
	RawLocation: Location,
	RawApp:      Link,
	RawVoip:     Voip,
	RawSystem:   System,
	RawPat:      System,
	RawQuoteAlt: Quote,
}

// InnerType returns the <type>N</type> marker embedded in app-message
// markup, or 0 when absent.
func InnerType(content string) int64 {
	m := innerTypeRe.FindStringSubmatch(content)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Classify maps a raw type code plus content markup to the canonical
// enum. An inner <type> marker governs sub-classification for app
// messages and, defensively, for any raw code, because some producers
// emit an inconsistent outer code.
func Classify(localType int64, content string) Type {
	inner := InnerType(content)
	if localType == RawApp || inner != 0 {
		switch inner {
		case 6:
			return File
		case 19:
			return Record
		case 33, 36:
			return MiniProgram
		case 57:
			return Quote
		case 2000:
			return Transfer
		case 5, 49:
			return Link
		default:
			if inner != 0 {
				return Link
			}
		}
	}
	if t, ok := rawTypeTable[localType]; ok {
		return t
	}
	return Other
}

// TypeName returns the Chinese display name used by tabular formats.
func TypeName(localType int64, content string) string {
	switch InnerType(content) {
	case 87:
		return "群公告"
	case 2000:
		return "转账消息"
	case 5:
		return "链接消息"
	case 6:
		return "文件消息"
	case 19:
		return "聊天记录"
	case 33, 36:
		return "小程序消息"
	case 57:
		return "引用消息"
	}
	switch localType {
	case RawText:
		return "文本消息"
	case RawImage:
		return "图片消息"
	case RawVoice:
		return "语音消息"
	case RawCard:
		return "名片消息"
	case RawVideo:
		return "视频消息"
	case RawEmoji:
		return "动画表情"
	case RawLocation:
		return "位置消息"
	case RawApp:
		return "链接消息"
	case RawVoip:
		return "通话消息"
	case RawSystem:
		return "系统消息"
	case RawQuoteAlt:
		return "引用消息"
	}
	return "其他消息"
}

// WeCloneTypeName returns the type label used by the WeClone CSV
// format. Everything without a dedicated label degrades to "text".
func WeCloneTypeName(localType int64, content string) string {
	switch localType {
	case RawText:
		return "text"
	case RawImage:
		return "image"
	case RawEmoji:
		return "sticker"
	case RawVideo:
		return "video"
	case RawVoice:
		return "voice"
	case RawLocation:
		return "location"
	case RawApp:
		if InnerType(content) == 6 {
			return "file"
		}
		return "text"
	}
	return "text"
}

// ChatlabCode maps the canonical type to the numeric code used by the
// chatlab interchange format. Record and mini-program collapse onto
// codes the format actually defines.
func ChatlabCode(t Type) int {
	switch t {
	case Text:
		return 0
	case Image:
		return 1
	case Voice:
		return 2
	case Video:
		return 3
	case File:
		return 4
	case Emoji:
		return 5
	case Link, Record:
		return 7
	case Location:
		return 8
	case Voip:
		return 23
	case MiniProgram:
		return 24
	case Quote:
		return 25
	case Card:
		return 27
	case System:
		return 80
	}
	return 99
}
