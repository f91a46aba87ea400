package wxmsg

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	sysmsgRe     = regexp.MustCompile(`(?is)<sysmsg[^>]*>(.*?)</sysmsg>`)
	replaceMsgRe = regexp.MustCompile(`(?is)<replacemsg><!\[CDATA\[(.*?)\]\]></replacemsg>`)
	templateRe   = regexp.MustCompile(`(?is)<template><!\[CDATA\[(.*?)\]\]></template>`)
	templateVar  = regexp.MustCompile(`\$\{([^}]+)\}`)
	titleRe      = regexp.MustCompile(`(?is)<title>(.*?)</title>`)
	imgTagRe     = regexp.MustCompile(`(?i)<img[^>]*>`)
	anyTagRe     = regexp.MustCompile(`</?[a-zA-Z0-9_:]+[^>]*>`)

	voipMsgRe      = regexp.MustCompile(`(?is)<msg><!\[CDATA\[(.*?)\]\]></msg>`)
	roomTypeRe     = regexp.MustCompile(`(?i)<room_type>(\d+)</room_type>`)
	voipDurationRe = regexp.MustCompile(`通话时长\s*(\d{1,2}:\d{2}(?::\d{2})?)`)

	sessionTagRe   = regexp.MustCompile(`(?i)<session>([^<]+)</session>`)
	fromUserRe     = regexp.MustCompile(`(?i)<fromusername>([^<]+)</fromusername>`)
	plainAccountRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]+$`)
)

// PreviewText renders a row into the short preview form used during
// collection. transcript, when non-empty, is a cached voice transcript
// for this row. Empty content yields an empty string.
func PreviewText(localType int64, content, transcript string) string {
	if content == "" {
		return ""
	}

	switch localType {
	case RawText:
		return StripSenderPrefix(content)
	case RawImage:
		return "[图片]"
	case RawVoice:
		if transcript != "" {
			return "[语音消息] " + transcript
		}
		return "[语音消息]"
	case RawCard:
		return "[名片]"
	case RawVideo:
		return "[视频]"
	case RawEmoji:
		return "[动画表情]"
	case RawLocation:
		return "[位置]"
	case RawApp:
		return renderAppPreview(content)
	case RawVoip:
		return ParseVoip(content)
	case RawSystem, RawPat:
		return CleanSystemMessage(content)
	case RawQuoteAlt:
		if title := ExtractXMLValue(content, "title"); title != "" {
			return title
		}
		return "[引用消息]"
	}

	if InnerType(content) != 0 {
		if text := renderAppPreview(content); text != "" {
			return text
		}
	}
	return StripSenderPrefix(content)
}

func renderAppPreview(content string) string {
	title := ExtractXMLValue(content, "title")
	switch InnerType(content) {
	case 2000:
		return renderTransferDesc(content, " ")
	case 87:
		if ann := ExtractXMLValue(content, "textannouncement"); ann != "" {
			return "[群公告] " + ann
		}
		return "[群公告]"
	case 6:
		if title != "" {
			return "[文件] " + title
		}
		return "[文件]"
	case 19:
		if title != "" {
			return "[聊天记录] " + title
		}
		return "[聊天记录]"
	case 33, 36:
		if title != "" {
			return "[小程序] " + title
		}
		return "[小程序]"
	case 57:
		if title != "" {
			return title
		}
		return "[引用消息]"
	}
	if title != "" {
		return "[链接] " + title
	}
	return "[链接]"
}

func renderTransferDesc(content, sep string) string {
	feedesc := ExtractXMLValue(content, "feedesc")
	payMemo := ExtractXMLValue(content, "pay_memo")
	if feedesc != "" {
		if payMemo != "" {
			return "[转账]" + sep + feedesc + " " + payMemo
		}
		return "[转账]" + sep + feedesc
	}
	return "[转账]"
}

// RenderText renders a row into the full export form. Voice rows
// surface the transcript when voice-as-text is enabled, with a fixed
// failure placeholder when transcription produced nothing.
func RenderText(localType int64, content string, voiceAsText bool, transcript string) string {
	switch localType {
	case RawImage:
		return "[图片]"
	case RawText:
		return StripSenderPrefix(content)
	case RawVoice:
		if voiceAsText {
			if transcript != "" {
				return transcript
			}
			return "[语音消息 - 转文字失败]"
		}
		return "[其他消息]"
	case RawCard:
		normalized := NormalizeAppMessage(content)
		name := firstXMLValue(normalized, "nickname", "displayname", "name")
		if name != "" {
			return "[名片]" + name
		}
		return "[名片]"
	case RawVideo:
		normalized := NormalizeAppMessage(content)
		length := firstXMLValue(normalized, "playlength", "length", "duration")
		if seconds := ParseDurationSeconds(length); seconds > 0 {
			return "[视频]" + strconv.Itoa(seconds) + "s"
		}
		return "[视频]"
	case RawLocation:
		normalized := NormalizeAppMessage(content)
		label := firstXMLValue(normalized, "label", "poiname", "name")
		if label != "" {
			return "[定位]" + label
		}
		return "[定位]"
	case RawVoip:
		return ParseVoip(content)
	case RawSystem, RawPat:
		return CleanSystemMessage(content)
	}

	normalized := NormalizeAppMessage(content)
	isApp := strings.Contains(normalized, "<appmsg") || strings.Contains(normalized, "<msg>")
	if localType != RawApp && !isApp {
		return "[其他消息]"
	}

	inner := InnerType(normalized)
	title := ExtractXMLValue(normalized, "title")
	if title == "" {
		title = ExtractXMLValue(normalized, "appname")
	}

	switch {
	case inner == 87:
		if ann := ExtractXMLValue(normalized, "textannouncement"); ann != "" {
			return "[群公告]" + ann
		}
		return "[群公告]"
	case inner == 2000 || strings.Contains(title, "转账") || strings.Contains(normalized, "transfer"):
		feedesc := ExtractXMLValue(normalized, "feedesc")
		payMemo := ExtractXMLValue(normalized, "pay_memo")
		if feedesc != "" {
			if payMemo != "" {
				return "[转账]" + feedesc + " " + payMemo
			}
			return "[转账]" + feedesc
		}
		fields := []string{
			title,
			ExtractXMLValue(normalized, "des"),
			ExtractXMLValue(normalized, "money"),
			ExtractXMLValue(normalized, "amount"),
			ExtractXMLValue(normalized, "fee"),
		}
		if amount := ExtractAmount(strings.Join(fields, " ")); amount != "" {
			return "[转账]" + amount
		}
		return "[转账]"
	case inner == 3 || strings.Contains(normalized, "<musicurl") || strings.Contains(normalized, "<songname"):
		song := ExtractXMLValue(normalized, "songname")
		if song == "" {
			song = title
		}
		if song == "" {
			song = "音乐"
		}
		return "[音乐]" + song
	case inner == 6:
		name := ExtractXMLValue(normalized, "filename")
		if name == "" {
			name = title
		}
		if name == "" {
			name = "文件"
		}
		return "[文件]" + name
	case strings.Contains(title, "红包") || strings.Contains(normalized, "hongbao"):
		if title != "" {
			return "[红包]" + title
		}
		return "[红包]微信红包"
	case inner == 19 || strings.Contains(normalized, "<recorditem"):
		name := firstXMLValue(normalized, "nickname", "title", "des", "displayname")
		if name != "" {
			return "[转发的聊天记录]" + name
		}
		return "[转发的聊天记录]"
	case inner == 33 || inner == 36:
		name := ExtractXMLValue(normalized, "appname")
		if name == "" {
			name = title
		}
		if name == "" {
			name = "小程序"
		}
		return "[小程序]" + name
	case inner == 57:
		if title != "" {
			return title
		}
		return "[引用消息]"
	case title != "":
		return "[链接]" + title
	}
	return "[其他消息]"
}

func firstXMLValue(markup string, tags ...string) string {
	for _, tag := range tags {
		if v := ExtractXMLValue(markup, tag); v != "" {
			return v
		}
	}
	return ""
}

// ParseVoip renders a call bubble: room_type picks the call kind, then
// the embedded status text maps to a fixed phrase. Duration is checked
// first because finished calls also mention other statuses.
func ParseVoip(content string) string {
	if content == "" {
		return "[通话]"
	}

	msg := ""
	if m := voipMsgRe.FindStringSubmatch(content); m != nil {
		msg = strings.TrimSpace(m[1])
	}

	callType := "通话"
	if m := roomTypeRe.FindStringSubmatch(content); m != nil {
		switch m[1] {
		case "0":
			callType = "视频通话"
		case "1":
			callType = "语音通话"
		}
	}

	switch {
	case strings.Contains(msg, "通话时长"):
		if m := voipDurationRe.FindStringSubmatch(msg); m != nil {
			return "[" + callType + "] " + m[1]
		}
		return "[" + callType + "] 已接听"
	case strings.Contains(msg, "对方无应答"):
		return "[" + callType + "] 对方无应答"
	case strings.Contains(msg, "已取消"):
		return "[" + callType + "] 已取消"
	case strings.Contains(msg, "已在其它设备接听"), strings.Contains(msg, "已在其他设备接听"):
		return "[" + callType + "] 已在其他设备接听"
	case strings.Contains(msg, "已拒绝"):
		return "[" + callType + "] 对方已拒绝"
	case strings.Contains(msg, "忙线"):
		return "[" + callType + "] 忙线未接听"
	case strings.Contains(msg, "未接听"):
		return "[" + callType + "] 未接听"
	case msg != "":
		return "[" + callType + "] " + msg
	}
	return "[" + callType + "]"
}

// CleanSystemMessage reduces a system-notice payload to readable text.
// It tries, in order: the revoke replacement message, a pat template
// with ${var} placeholders substituted from sibling tags, a bare
// title, and finally stripping every tag. Never returns an empty
// string.
func CleanSystemMessage(content string) string {
	if content == "" {
		return "[系统消息]"
	}

	if m := sysmsgRe.FindStringSubmatch(content); m != nil {
		content = m[1]
	}

	if m := replaceMsgRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}

	if m := templateRe.FindStringSubmatch(content); m != nil {
		expanded := templateVar.ReplaceAllStringFunc(m[1], func(ref string) string {
			name := templateVar.FindStringSubmatch(ref)[1]
			return ExtractXMLValue(content, name)
		})
		expanded = anyTagRe.ReplaceAllString(expanded, "")
		return strings.TrimSpace(expanded)
	}

	if m := titleRe.FindStringSubmatch(content); m != nil {
		if title := strings.TrimSpace(stripCDATA(m[1])); title != "" {
			return title
		}
	}

	content = stripCDATA(content)
	content = imgTagRe.ReplaceAllString(content, "")
	content = anyTagRe.ReplaceAllString(content, "")
	content = strings.Join(strings.Fields(content), " ")
	if content == "" {
		return "[系统消息]"
	}
	return content
}

// RevokeInfo describes whether a system notice is a message
// revocation and who performed it.
type RevokeInfo struct {
	IsRevoke   bool
	SelfRevoke bool
	RevokerID  string
}

// DetectRevoke classifies revocation notices. Self-revocation is
// recognized by the first-person phrase; otherwise the revoker id is
// pulled from the session tag and then the fromusername tag.
func DetectRevoke(content string) RevokeInfo {
	if content == "" {
		return RevokeInfo{}
	}
	if !strings.Contains(content, "revokemsg") && !strings.Contains(content, "撤回") {
		return RevokeInfo{}
	}
	if strings.Contains(content, "你撤回") {
		return RevokeInfo{IsRevoke: true, SelfRevoke: true}
	}
	if m := sessionTagRe.FindStringSubmatch(content); m != nil {
		session := strings.TrimSpace(m[1])
		if strings.HasPrefix(session, "wxid_") || plainAccountRe.MatchString(session) {
			return RevokeInfo{IsRevoke: true, RevokerID: session}
		}
	}
	if m := fromUserRe.FindStringSubmatch(content); m != nil {
		return RevokeInfo{IsRevoke: true, RevokerID: strings.TrimSpace(m[1])}
	}
	return RevokeInfo{IsRevoke: true}
}
