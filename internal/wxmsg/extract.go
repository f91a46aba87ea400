package wxmsg

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	senderPrefixRe = regexp.MustCompile(`^\s*[a-zA-Z0-9_-]+:`)
	amountRe       = regexp.MustCompile(`[¥￥]\s*\d+(?:\.\d+)?|\d+(?:\.\d+)?`)
	spaceRe        = regexp.MustCompile(`\s+`)

	imageMD5Re    = regexp.MustCompile(`(?i)md5="([^"]+)"`)
	cdnThumbRe    = regexp.MustCompile(`(?i)cdnthumburl[^>]*>([^<]+)`)
	emojiCdnRe    = regexp.MustCompile(`(?i)cdnurl\s*=\s*['"]([^'"]+)['"]`)
	emojiCdnTagRe = regexp.MustCompile(`(?i)cdnurl[^>]*>([^<]+)`)
	emojiMD5TagRe = regexp.MustCompile(`(?i)<md5>([^<]+)</md5>`)
	videoMD5Re    = regexp.MustCompile(`(?i)<videomsg[^>]*\smd5\s*=\s*['"]([a-fA-F0-9]+)['"]`)

	entityReplacer = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
	)
)

// ExtractXMLValue pulls the inner text of the first <tag>...</tag>
// occurrence, with CDATA wrappers removed. Markup here is too irregular
// for a strict XML parser: producers nest CDATA, omit declarations, and
// leave tags unbalanced, so this stays regex-based by design of the
// payloads, not preference.
func ExtractXMLValue(markup, tag string) string {
	m := tagRe(tag).FindStringSubmatch(markup)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(stripCDATA(m[1]))
}

var tagReCache sync.Map

// tagRe caches one pattern per tag name; extraction runs once per row
// per tag across potentially millions of rows.
func tagRe(tag string) *regexp.Regexp {
	if cached, ok := tagReCache.Load(tag); ok {
		return cached.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(tag) + `>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
	tagReCache.Store(tag, re)
	return re
}

func stripCDATA(s string) string {
	s = strings.ReplaceAll(s, "<![CDATA[", "")
	return strings.ReplaceAll(s, "]]>", "")
}

// DecodeEntities resolves the small set of HTML entities that appear in
// escaped app-message payloads.
func DecodeEntities(text string) string {
	if text == "" {
		return ""
	}
	return entityReplacer.Replace(text)
}

// NormalizeAppMessage unescapes content that was stored entity-encoded.
// Content without both &lt; and &gt; is returned untouched so plain
// text containing a stray ampersand is never rewritten.
func NormalizeAppMessage(content string) string {
	if strings.Contains(content, "&lt;") && strings.Contains(content, "&gt;") {
		return entityReplacer.Replace(content)
	}
	return content
}

// StripSenderPrefix removes a leading "sender:" token from group text
// rows, along with any blank padding after the colon. A colon
// immediately followed by "//" is left alone so URLs survive.
func StripSenderPrefix(content string) string {
	loc := senderPrefixRe.FindStringIndex(content)
	if loc == nil {
		return content
	}
	if strings.HasPrefix(content[loc[1]:], "//") {
		return content
	}
	return strings.TrimLeft(content[loc[1]:], " \t")
}

// ExtractAmount finds the first currency-symbol-or-decimal figure in
// free text, with internal whitespace collapsed.
func ExtractAmount(text string) string {
	m := amountRe.FindString(text)
	if m == "" {
		return ""
	}
	return spaceRe.ReplaceAllString(m, "")
}

// ParseDurationSeconds interprets a playlength-style value: values at
// or above 1000 are milliseconds, smaller values are already seconds.
func ParseDurationSeconds(value string) int {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || n <= 0 {
		return 0
	}
	if n >= 1000 {
		return int(math.Round(n / 1000))
	}
	return int(math.Round(n))
}

// ImageMD5 returns the md5 attribute from image markup, used as the
// natural key for the encrypted .dat lookup.
func ImageMD5(content string) string {
	if m := imageMD5Re.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

// ImageDatName derives a candidate .dat file stem from the CDN thumb
// URL's last path segment.
func ImageDatName(content string) string {
	m := cdnThumbRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	parts := strings.Split(m[1], "/")
	last := parts[len(parts)-1]
	if idx := strings.Index(last, "_"); idx > 0 {
		return last[:idx]
	}
	return ""
}

// EmojiURL returns the sticker's CDN download URL, entity- and
// percent-decoded.
func EmojiURL(content string) string {
	if m := emojiCdnRe.FindStringSubmatch(content); m != nil {
		u := strings.ReplaceAll(m[1], "&amp;", "&")
		if strings.Contains(u, "%") {
			if decoded, err := url.QueryUnescape(u); err == nil {
				u = decoded
			}
		}
		return u
	}
	if m := emojiCdnTagRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

// EmojiMD5 returns the sticker hash from either attribute or tag form.
func EmojiMD5(content string) string {
	if m := imageMD5Re.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	if m := emojiMD5TagRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

// VideoMD5 returns the lowercase video hash from videomsg markup.
func VideoMD5(content string) string {
	if m := videoMD5Re.FindStringSubmatch(content); m != nil {
		return strings.ToLower(m[1])
	}
	if m := emojiMD5TagRe.FindStringSubmatch(content); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}

// TransferParties extracts the payer and receiver account ids from a
// transfer app message. Both must be present; a non-transfer inner type
// yields nothing.
func TransferParties(content string) (payer, receiver string, ok bool) {
	normalized := NormalizeAppMessage(content)
	if normalized == "" {
		return "", "", false
	}
	if inner := InnerType(normalized); inner != 0 && inner != 2000 {
		return "", "", false
	}
	payer = ExtractXMLValue(normalized, "payer_username")
	receiver = ExtractXMLValue(normalized, "receiver_username")
	if payer == "" || receiver == "" {
		return "", "", false
	}
	return payer, receiver, true
}
