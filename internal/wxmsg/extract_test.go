package wxmsg

import "testing"

func TestExtractXMLValue(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		tag    string
		want   string
	}{
		{"plain", "<title>hello</title>", "title", "hello"},
		{"cdata", "<title><![CDATA[hello]]></title>", "title", "hello"},
		{"case insensitive", "<Title>hello</Title>", "title", "hello"},
		{"multiline", "<des>line1\nline2</des>", "des", "line1\nline2"},
		{"missing", "<other>x</other>", "title", ""},
		{"first occurrence", "<t>a</t><t>b</t>", "t", "a"},
		{"whitespace trimmed", "<t>  x  </t>", "t", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractXMLValue(tt.markup, tt.tag); got != tt.want {
				t.Errorf("ExtractXMLValue(%q, %q) = %q, want %q", tt.markup, tt.tag, got, tt.want)
			}
		})
	}
}

func TestNormalizeAppMessage(t *testing.T) {
	escaped := "&lt;msg&gt;&amp;&quot;&lt;/msg&gt;"
	if got := NormalizeAppMessage(escaped); got != `<msg>&"</msg>` {
		t.Errorf("NormalizeAppMessage() = %q", got)
	}
	// An ampersand without angle-bracket entities must not be rewritten.
	plain := "Tom &amp; Jerry"
	if got := NormalizeAppMessage(plain); got != plain {
		t.Errorf("NormalizeAppMessage(%q) = %q, want unchanged", plain, got)
	}
}

func TestStripSenderPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"wxid_abc:hello", "hello"},
		{"wxid_abc123: hello", "hello"},
		{"  user_1:hi", "hi"},
		{"user_1:\thi", "hi"},
		{"https://a.com", "https://a.com"},
		{"no prefix here", "no prefix here"},
		{"中文:不剥离", "中文:不剥离"},
	}
	for _, tt := range tests {
		if got := StripSenderPrefix(tt.in); got != tt.want {
			t.Errorf("StripSenderPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"收到转账 ¥ 10.50 元", "¥10.50"},
		{"￥3", "￥3"},
		{"金额 25.00", "25.00"},
		{"没有数字", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractAmount(tt.in); got != tt.want {
			t.Errorf("ExtractAmount(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDurationSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"15", 15},
		{"15000", 15},
		{"1499", 1},
		{"0", 0},
		{"-3", 0},
		{"abc", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := ParseDurationSeconds(tt.in); got != tt.want {
			t.Errorf("ParseDurationSeconds(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMediaKeyExtraction(t *testing.T) {
	img := `<msg><img md5="AABB1122" cdnthumburl="x"></img></msg>`
	if got := ImageMD5(img); got != "AABB1122" {
		t.Errorf("ImageMD5 = %q", got)
	}

	dat := `<img><cdnthumburl>http://cdn/path/abc123_thumb.jpg</cdnthumburl></img>`
	if got := ImageDatName(dat); got != "abc123" {
		t.Errorf("ImageDatName = %q", got)
	}

	emoji := `<emoji cdnurl="http://cdn/e?x=1&amp;y=2" md5="ff00"/>`
	if got := EmojiURL(emoji); got != "http://cdn/e?x=1&y=2" {
		t.Errorf("EmojiURL = %q", got)
	}
	if got := EmojiMD5(emoji); got != "ff00" {
		t.Errorf("EmojiMD5 = %q", got)
	}

	video := `<msg><videomsg md5="ABCDEF01"></videomsg></msg>`
	if got := VideoMD5(video); got != "abcdef01" {
		t.Errorf("VideoMD5 = %q", got)
	}

	if got := ImageMD5("no markup"); got != "" {
		t.Errorf("ImageMD5(miss) = %q", got)
	}
}

func TestTransferParties(t *testing.T) {
	content := "<msg><appmsg><type>2000</type>" +
		"<payer_username>wxid_payer</payer_username>" +
		"<receiver_username>wxid_recv</receiver_username></appmsg></msg>"
	payer, receiver, ok := TransferParties(content)
	if !ok || payer != "wxid_payer" || receiver != "wxid_recv" {
		t.Errorf("TransferParties = (%q, %q, %v)", payer, receiver, ok)
	}

	if _, _, ok := TransferParties("<type>5</type><payer_username>a</payer_username>"); ok {
		t.Error("non-transfer inner type accepted")
	}
	if _, _, ok := TransferParties("<type>2000</type><payer_username>a</payer_username>"); ok {
		t.Error("missing receiver accepted")
	}
	if _, _, ok := TransferParties(""); ok {
		t.Error("empty content accepted")
	}
}
