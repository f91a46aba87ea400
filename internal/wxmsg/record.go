package wxmsg

import (
	"regexp"
	"strconv"
	"time"
)

var (
	recordItemRe = regexp.MustCompile(`(?s)<recorditem>.*?<!\[CDATA\[(.*?)\]\]>.*?</recorditem>`)
	dataItemRe   = regexp.MustCompile(`(?s)<dataitem\s+(.*?)>(.*?)</dataitem>`)
	dataTypeRe   = regexp.MustCompile(`datatype="(\d+)"`)
)

const recordTimeLayout = "2006-01-02 15:04:05"

// RecordItem is one sub-message inside a forwarded chat record.
type RecordItem struct {
	Type       Type
	SourceName string
	SourceTime string
	// Timestamp is the SourceTime reparsed as a unix second, 0 when
	// the free-text form does not match the fixed layout.
	Timestamp     int64
	SourceHeadURL string
	Desc          string
	Title         string
	FileExt       string
	Size          int64
	// DisplayText is the rendered form used when the sub-item is not
	// plain text.
	DisplayText string
}

// ParseRecordItems extracts the nested sub-messages of a forwarded
// record container (inner type 19). Returns nil for anything else or
// when the container carries no parseable items.
func ParseRecordItems(content string) []RecordItem {
	normalized := NormalizeAppMessage(content)
	if InnerType(normalized) != 19 {
		return nil
	}
	m := recordItemRe.FindStringSubmatch(normalized)
	if m == nil {
		return nil
	}

	var items []RecordItem
	for _, im := range dataItemRe.FindAllStringSubmatch(m[1], -1) {
		attrs, body := im[1], im[2]

		var dataType int64
		if dm := dataTypeRe.FindStringSubmatch(attrs); dm != nil {
			dataType, _ = strconv.ParseInt(dm[1], 10, 64)
		}

		item := RecordItem{
			SourceName:    ExtractXMLValue(body, "sourcename"),
			SourceTime:    ExtractXMLValue(body, "sourcetime"),
			SourceHeadURL: ExtractXMLValue(body, "sourceheadurl"),
			Desc:          DecodeEntities(ExtractXMLValue(body, "datadesc")),
			Title:         DecodeEntities(ExtractXMLValue(body, "datatitle")),
			FileExt:       ExtractXMLValue(body, "fileext"),
		}
		if size, err := strconv.ParseInt(ExtractXMLValue(body, "datasize"), 10, 64); err == nil {
			item.Size = size
		}
		if item.SourceTime != "" {
			if t, err := time.ParseInLocation(recordTimeLayout, item.SourceTime, time.Local); err == nil {
				item.Timestamp = t.Unix()
			}
		}
		item.Type, item.DisplayText = classifyRecordItem(dataType, item)
		items = append(items, item)
	}
	return items
}

func classifyRecordItem(dataType int64, item RecordItem) (Type, string) {
	fallback := item.Desc
	if fallback == "" {
		fallback = item.Title
	}
	switch dataType {
	case 1:
		return Text, fallback
	case 3:
		return Image, "[图片]"
	case 8, 49:
		if item.Title != "" {
			return File, "[文件] " + item.Title
		}
		return File, "[文件]"
	case 34:
		return Voice, "[语音消息]"
	case 43:
		return Video, "[视频]"
	case 47:
		return Emoji, "[动画表情]"
	}
	if fallback == "" {
		fallback = "[消息]"
	}
	return Text, fallback
}
