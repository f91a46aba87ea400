package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/weflow/wxport/internal/config"
	"github.com/weflow/wxport/internal/store"
)

type fakeCursor struct {
	batches [][]store.RawRow
	idx     int
	err     error
}

func (c *fakeCursor) Fetch(ctx context.Context) ([]store.RawRow, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.idx >= len(c.batches) {
		return nil, nil
	}
	batch := c.batches[c.idx]
	c.idx++
	return batch, nil
}

func (c *fakeCursor) Close() {}

type fakeStore struct {
	rows map[string][]store.RawRow
	errs map[string]error
}

func (s *fakeStore) OpenCursor(session string, batchSize int, asc bool, start, end int64) Cursor {
	if err := s.errs[session]; err != nil {
		return &fakeCursor{err: err}
	}
	var out []store.RawRow
	for _, r := range s.rows[session] {
		if start != 0 && r.CreateTime < start {
			continue
		}
		if end != 0 && r.CreateTime > end {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return &fakeCursor{}
	}
	return &fakeCursor{batches: [][]store.RawRow{out}}
}

func (s *fakeStore) CountMessages(ctx context.Context, session string, start, end int64) (int, error) {
	return len(s.rows[session]), nil
}

func (s *fakeStore) CountMessagesByType(ctx context.Context, session string, start, end int64) (map[int64]int, error) {
	byType := map[int64]int{}
	for _, r := range s.rows[session] {
		byType[r.LocalType]++
	}
	return byType, nil
}

type fakeContacts struct {
	contacts map[string]*store.ContactDetail
	names    map[string]string
	members  map[string][]string
	avatars  map[string]string
}

func (c *fakeContacts) Contact(ctx context.Context, username string) (*store.ContactDetail, error) {
	return c.contacts[username], nil
}

func (c *fakeContacts) DisplayNames(ctx context.Context, usernames []string) (map[string]string, error) {
	out := map[string]string{}
	for _, u := range usernames {
		if name := c.names[u]; name != "" {
			out[u] = name
		}
	}
	return out, nil
}

func (c *fakeContacts) AvatarURLs(ctx context.Context, usernames []string) (map[string]string, error) {
	out := map[string]string{}
	for _, u := range usernames {
		if url := c.avatars[u]; url != "" {
			out[u] = url
		}
	}
	return out, nil
}

func (c *fakeContacts) GroupMembers(ctx context.Context, roomID string) ([]string, error) {
	return c.members[roomID], nil
}

func (c *fakeContacts) RoomExtBuffer(ctx context.Context, roomID string) ([]byte, error) {
	return nil, nil
}

type fakeMedia struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeMedia) ExportMedia(ctx context.Context, session string, row store.RawRow, mediaDir string) (*MediaItem, error) {
	key := fmt.Sprintf("%d_%d", row.LocalType, row.LocalID)
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[key]++
	f.mu.Unlock()
	return &MediaItem{Kind: "image", RelativePath: fmt.Sprintf("media/%d.jpg", row.LocalID)}, nil
}

type fakeTranscriber struct {
	mu          sync.Mutex
	texts       map[int64]string
	ensureCalls int
	calls       int
}

func (f *fakeTranscriber) EnsureModel(ctx context.Context, onProgress func(done, total int64)) error {
	f.mu.Lock()
	f.ensureCalls++
	f.mu.Unlock()
	if onProgress != nil {
		onProgress(1, 1)
	}
	return nil
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, session string, row store.RawRow) (string, error) {
	f.mu.Lock()
	f.calls++
	text, ok := f.texts[row.LocalID]
	f.mu.Unlock()
	if !ok {
		return "", errors.New("no speech detected")
	}
	return text, nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func cacheKey(session string, localID int64) string {
	return fmt.Sprintf("%s/%d", session, localID)
}

func (f *fakeCache) GetTranscript(ctx context.Context, session string, localID int64) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.data[cacheKey(session, localID)]
	return text, ok, nil
}

func (f *fakeCache) PutTranscript(ctx context.Context, t store.Transcript) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = map[string]string{}
	}
	f.data[cacheKey(t.Session, t.LocalID)] = t.Text
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		AccountID:  "wxid_self",
		StorePath:  "/tmp/chat.db",
		DecryptKey: "0123456789abcdef",
	}
}

func textRow(id, ts int64, sender, content string, isSender bool) store.RawRow {
	return store.RawRow{
		LocalID:    id,
		LocalType:  1,
		CreateTime: ts,
		Content:    content,
		Sender:     sender,
		IsSender:   isSender,
	}
}

func newTestExporter(p Params) *Exporter {
	if p.Config == nil {
		p.Config = testConfig()
	}
	if p.Contacts == nil {
		p.Contacts = &fakeContacts{}
	}
	return New(p)
}

func TestExportSessionNoMessages(t *testing.T) {
	e := newTestExporter(Params{
		Store: &fakeStore{rows: map[string][]store.RawRow{}},
	})

	out := filepath.Join(t.TempDir(), "empty.json")
	result := e.ExportSession(context.Background(), "friend_a", out, Options{Format: FormatChatlab})

	if result.Success {
		t.Fatal("expected failure for empty session")
	}
	if !errors.Is(result.Error, ErrNoMessages) {
		t.Fatalf("error = %v, want ErrNoMessages", result.Error)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output file should not exist, stat err = %v", err)
	}
}

func TestExportSessionWritesChatlab(t *testing.T) {
	e := newTestExporter(Params{
		Store: &fakeStore{rows: map[string][]store.RawRow{
			"friend_a": {
				textRow(2, 1700000100, "friend_a", "回头聊", false),
				textRow(1, 1700000000, "", "晚上吃什么", true),
			},
		}},
		Contacts: &fakeContacts{
			contacts: map[string]*store.ContactDetail{
				"friend_a": {Username: "friend_a", Nickname: "阿豪", Remark: "豪哥"},
			},
			names: map[string]string{"friend_a": "豪哥"},
		},
	})

	out := filepath.Join(t.TempDir(), "friend_a.json")
	result := e.ExportSession(context.Background(), "friend_a", out, Options{Format: FormatChatlab})
	if !result.Success {
		t.Fatalf("export failed: %v", result.Error)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var export chatlabExport
	if err := json.Unmarshal(raw, &export); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if export.Chatlab.Version != chatlabVersion {
		t.Errorf("version = %q, want %q", export.Chatlab.Version, chatlabVersion)
	}
	if export.Meta.Name != "豪哥" || export.Meta.Type != "private" {
		t.Errorf("meta = %+v", export.Meta)
	}
	if len(export.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(export.Messages))
	}
	// Sorted by create time regardless of row order.
	if export.Messages[0].Content != "晚上吃什么" {
		t.Errorf("first message = %q", export.Messages[0].Content)
	}
	if export.Messages[0].Sender != "wxid_self" {
		t.Errorf("own row sender = %q, want wxid_self", export.Messages[0].Sender)
	}
}

func TestExportSessionsKeepsGoingPastFailures(t *testing.T) {
	e := newTestExporter(Params{
		Store: &fakeStore{
			rows: map[string][]store.RawRow{
				"friend_a": {textRow(1, 1700000000, "friend_a", "hi", false)},
				"friend_b": {textRow(1, 1700000000, "friend_b", "hey", false)},
				"friend_c": {textRow(1, 1700000000, "friend_c", "yo", false)},
			},
			errs: map[string]error{"friend_b": errors.New("disk read failed")},
		},
	})

	dir := t.TempDir()
	result := e.ExportSessions(context.Background(), []string{"friend_a", "friend_b", "friend_c"}, dir, Options{Format: FormatTXT})

	if !result.Success {
		t.Error("batch machinery should report success")
	}
	if result.SuccessCount != 2 || result.FailCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", result.SuccessCount, result.FailCount)
	}
	for _, name := range []string{"friend_a.txt", "friend_c.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
}

func TestExportSessionsEmpty(t *testing.T) {
	e := newTestExporter(Params{Store: &fakeStore{}})
	result := e.ExportSessions(context.Background(), nil, t.TempDir(), Options{})
	if !result.Success || result.SuccessCount != 0 || result.FailCount != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestMediaExportedOncePerItem(t *testing.T) {
	media := &fakeMedia{}
	rows := []store.RawRow{
		{LocalID: 1, LocalType: 3, CreateTime: 1700000000, Sender: "friend_a", Content: "<msg/>"},
		{LocalID: 1, LocalType: 3, CreateTime: 1700000001, Sender: "friend_a", Content: "<msg/>"},
		{LocalID: 1, LocalType: 3, CreateTime: 1700000002, Sender: "friend_a", Content: "<msg/>"},
		{LocalID: 1, LocalType: 3, CreateTime: 1700000003, Sender: "friend_a", Content: "<msg/>"},
		{LocalID: 2, LocalType: 3, CreateTime: 1700000004, Sender: "friend_a", Content: "<msg/>"},
	}
	e := newTestExporter(Params{
		Store: &fakeStore{rows: map[string][]store.RawRow{"friend_a": rows}},
		Media: media,
	})

	out := filepath.Join(t.TempDir(), "friend_a.json")
	// Several workers race on the duplicate rows; the decrypt must
	// still happen once per distinct item.
	result := e.ExportSession(context.Background(), "friend_a", out, Options{
		Format:       FormatChatlab,
		ExportImages: true,
		Concurrency:  4,
	})
	if !result.Success {
		t.Fatalf("export failed: %v", result.Error)
	}

	if media.calls["3_1"] != 1 {
		t.Errorf("duplicate rows exported %d times, want 1", media.calls["3_1"])
	}
	if media.calls["3_2"] != 1 {
		t.Errorf("second item exported %d times, want 1", media.calls["3_2"])
	}
}

func TestVoiceTranscriptionUsesCache(t *testing.T) {
	voiceContent := `<msg><voicemsg length="2100" /></msg>`
	rows := []store.RawRow{
		{LocalID: 1, LocalType: 34, CreateTime: 1700000000, Sender: "friend_a", Content: voiceContent},
		{LocalID: 2, LocalType: 34, CreateTime: 1700000001, Sender: "friend_a", Content: voiceContent},
	}
	cache := &fakeCache{data: map[string]string{cacheKey("friend_a", 1): "已缓存的内容"}}
	trans := &fakeTranscriber{texts: map[int64]string{2: "新转写的内容"}}

	e := newTestExporter(Params{
		Store:       &fakeStore{rows: map[string][]store.RawRow{"friend_a": rows}},
		Transcriber: trans,
		Cache:       cache,
	})

	out := filepath.Join(t.TempDir(), "friend_a.txt")
	result := e.ExportSession(context.Background(), "friend_a", out, Options{
		Format:      FormatTXT,
		VoiceAsText: true,
	})
	if !result.Success {
		t.Fatalf("export failed: %v", result.Error)
	}

	if trans.ensureCalls != 1 {
		t.Errorf("EnsureModel called %d times, want 1", trans.ensureCalls)
	}
	if trans.calls != 1 {
		t.Errorf("Transcribe called %d times, want 1 (cached row must be skipped)", trans.calls)
	}
	if cache.data[cacheKey("friend_a", 2)] != "新转写的内容" {
		t.Error("fresh transcript was not cached")
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"已缓存的内容", "新转写的内容"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("output missing transcript %q", want)
		}
	}
}

func TestMemberMergeFirstWriterWins(t *testing.T) {
	m := &Member{ID: "friend_a", Nickname: "阿豪"}
	m.Merge(Member{Nickname: "覆盖", Remark: "豪哥"})
	if m.Nickname != "阿豪" {
		t.Errorf("existing nickname overwritten: %q", m.Nickname)
	}
	if m.Remark != "豪哥" {
		t.Errorf("empty remark not filled: %q", m.Remark)
	}
}

func TestMemberDisplayName(t *testing.T) {
	full := Member{ID: "wxid_1", Nickname: "昵称", Remark: "备注", GroupNickname: "群昵称"}
	tests := []struct {
		pref   NamePreference
		member Member
		want   string
	}{
		{PreferGroupNickname, full, "群昵称"},
		{PreferRemark, full, "备注"},
		{PreferNickname, full, "昵称"},
		{PreferGroupNickname, Member{ID: "wxid_1", Nickname: "昵称"}, "昵称"},
		{PreferRemark, Member{ID: "wxid_1"}, "wxid_1"},
		{"", full, "备注"},
	}
	for _, tt := range tests {
		if got := tt.member.DisplayName(tt.pref); got != tt.want {
			t.Errorf("DisplayName(%s) = %q, want %q", tt.pref, got, tt.want)
		}
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"工作群", "工作群"},
		{`a/b\c:d`, "a_b_c_d"},
		{"name<>?*", "name____"},
		{"trailing...", "trailing"},
		{"...", "_"},
		{"", "_"},
	}
	for _, tt := range tests {
		if got := safeFileName(tt.in); got != tt.want {
			t.Errorf("safeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTranslateWriteError(t *testing.T) {
	if translateWriteError(nil) != nil {
		t.Error("nil must pass through")
	}
	if err := translateWriteError(errors.New("open x: EBUSY")); !errors.Is(err, ErrFileBusy) {
		t.Errorf("EBUSY not translated: %v", err)
	}
	if err := translateWriteError(errors.New("file is locked by viewer")); !errors.Is(err, ErrFileBusy) {
		t.Errorf("locked not translated: %v", err)
	}
	plain := errors.New("permission denied")
	if err := translateWriteError(plain); err != plain {
		t.Errorf("unrelated error rewritten: %v", err)
	}
}

func TestPhaseTransitions(t *testing.T) {
	m := newPhaseMachine(nil, "run", "session")
	for _, phase := range []Phase{PhaseExportingMedia, PhaseExportingVoice, PhaseExporting, PhaseWriting, PhaseComplete} {
		if err := m.Transition(phase); err != nil {
			t.Fatalf("transition to %s: %v", phase, err)
		}
	}
	if m.Current() != PhaseComplete {
		t.Errorf("current = %s", m.Current())
	}
}

func TestPhaseTransitionRejectsSkips(t *testing.T) {
	m := newPhaseMachine(nil, "run", "session")
	if err := m.Transition(PhaseWriting); err == nil {
		t.Error("preparing -> writing should be rejected")
	}
	if err := m.Transition(PhaseExporting); err != nil {
		t.Fatalf("skipping optional phases should be allowed: %v", err)
	}
	if err := m.Transition(PhaseExportingMedia); err == nil {
		t.Error("moving backwards should be rejected")
	}
}

func TestFormatExt(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatChatlab, ".json"},
		{FormatChatlabJSONL, ".jsonl"},
		{FormatJSON, ".json"},
		{FormatTXT, ".txt"},
		{FormatWeClone, ".csv"},
		{FormatHTML, ".html"},
	}
	for _, tt := range tests {
		if got := formatExt(tt.format); got != tt.want {
			t.Errorf("formatExt(%s) = %q, want %q", tt.format, got, tt.want)
		}
	}
}
