package wxmsg

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		localType int64
		content   string
		want      Type
	}{
		{"text", 1, "hello", Text},
		{"image", 3, "", Image},
		{"voice", 34, "", Voice},
		{"card", 42, "", Card},
		{"video", 43, "", Video},
		{"emoji", 47, "", Emoji},
		{"location", 48, "", Location},
		{"app without marker", 49, "<msg><appmsg></appmsg></msg>", Link},
		{"voip", 50, "", Voip},
		{"system", 10000, "", System},
		{"pat alias", 266287972401, "", System},
		{"quote alias", 244813135921, "", Quote},
		{"file marker", 49, "<msg><appmsg><type>6</type></appmsg></msg>", File},
		{"record marker", 49, "<type>19</type>", Record},
		{"miniprogram 33", 49, "<type>33</type>", MiniProgram},
		{"miniprogram 36", 49, "<type>36</type>", MiniProgram},
		{"quote marker", 49, "<type>57</type>", Quote},
		{"transfer marker", 49, "<type>2000</type>", Transfer},
		{"link marker 5", 49, "<type>5</type>", Link},
		{"unknown marker defaults to link", 49, "<type>4242</type>", Link},
		{"marker overrides outer code", 1, "<type>6</type>", File},
		{"unknown outer", 999, "", Other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.localType, tt.content); got != tt.want {
				t.Errorf("Classify(%d, %q) = %v, want %v", tt.localType, tt.content, got, tt.want)
			}
		})
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		localType int64
		content   string
		want      string
	}{
		{1, "", "文本消息"},
		{3, "", "图片消息"},
		{34, "", "语音消息"},
		{49, "<type>6</type>", "文件消息"},
		{49, "<type>2000</type>", "转账消息"},
		{49, "<type>87</type>", "群公告"},
		{49, "", "链接消息"},
		{10000, "", "系统消息"},
		{999, "", "其他消息"},
	}
	for _, tt := range tests {
		if got := TypeName(tt.localType, tt.content); got != tt.want {
			t.Errorf("TypeName(%d, %q) = %q, want %q", tt.localType, tt.content, got, tt.want)
		}
	}
}

func TestWeCloneTypeName(t *testing.T) {
	tests := []struct {
		localType int64
		content   string
		want      string
	}{
		{1, "", "text"},
		{3, "", "image"},
		{47, "", "sticker"},
		{43, "", "video"},
		{34, "", "voice"},
		{48, "", "location"},
		{49, "<type>6</type>", "file"},
		{49, "<type>5</type>", "text"},
		{10000, "", "text"},
	}
	for _, tt := range tests {
		if got := WeCloneTypeName(tt.localType, tt.content); got != tt.want {
			t.Errorf("WeCloneTypeName(%d, %q) = %q, want %q", tt.localType, tt.content, got, tt.want)
		}
	}
}

func TestChatlabCodeCoversAllTypes(t *testing.T) {
	want := map[Type]int{
		Text: 0, Image: 1, Voice: 2, Video: 3, File: 4, Emoji: 5,
		Link: 7, Record: 7, Location: 8, Voip: 23, MiniProgram: 24,
		Quote: 25, Card: 27, System: 80, Transfer: 99, Other: 99,
	}
	for typ, code := range want {
		if got := ChatlabCode(typ); got != code {
			t.Errorf("ChatlabCode(%v) = %d, want %d", typ, got, code)
		}
	}
}
