// Package export implements the chat export pipeline: collect rows
// from the chat store, enrich them with media and voice transcripts,
// and write one of the supported output formats.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weflow/wxport/internal/config"
	"github.com/weflow/wxport/internal/decode"
	"github.com/weflow/wxport/internal/extbuf"
	"github.com/weflow/wxport/internal/progress"
	"github.com/weflow/wxport/internal/sched"
	"github.com/weflow/wxport/internal/store"
	"github.com/weflow/wxport/internal/wxmsg"
)

const (
	cursorBatchSize = 500
	// Transcription is resource-heavy; its worker count is fixed and
	// independent of the media concurrency option.
	voiceConcurrency   = 4
	defaultConcurrency = 2
)

// Params collects the exporter's dependencies. Media and voice
// facilities are optional; runs that don't request them never touch
// them.
type Params struct {
	Config      *config.Config
	Store       MessageStore
	Contacts    ContactResolver
	Media       MediaExporter
	Transcriber Transcriber
	Cache       TranscriptCache
	Broker      *progress.Broker
	Logger      *zap.Logger
}

// Exporter runs export sessions against a chat store.
type Exporter struct {
	cfg         *config.Config
	store       MessageStore
	contacts    ContactResolver
	media       MediaExporter
	transcriber Transcriber
	cache       TranscriptCache
	broker      *progress.Broker
	log         *zap.Logger
}

func New(p Params) *Exporter {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	broker := p.Broker
	if broker == nil {
		broker = progress.New()
	}
	return &Exporter{
		cfg:         p.Config,
		store:       p.Store,
		contacts:    p.Contacts,
		media:       p.Media,
		transcriber: p.Transcriber,
		cache:       p.Cache,
		broker:      broker,
		log:         log,
	}
}

// document is the fully assembled input handed to a format writer.
type document struct {
	Session     string
	SessionName string
	SelfID      string
	Members     []*Member
	Messages    []*Message
	Opts        Options
	GeneratedAt time.Time
	RunID       string
}

// ExportSession exports one session to outputPath. Failures come back
// inside the Result so batch callers can keep going.
func (e *Exporter) ExportSession(ctx context.Context, session, outputPath string, opts Options) Result {
	runID := uuid.NewString()
	machine := newPhaseMachine(e.broker, runID, session)
	e.broker.Report(progress.Report{RunID: runID, CurrentSession: session, Phase: string(PhasePreparing)})

	if err := e.cfg.Validate(); err != nil {
		return Result{Error: fmt.Errorf("export config: %w", err)}
	}

	doc, err := e.collect(ctx, session, opts)
	if err != nil {
		return Result{Error: err}
	}
	doc.RunID = runID
	doc.Opts = opts

	if opts.ExportAvatars {
		e.fetchAvatars(ctx, doc, outputPath)
	}

	if opts.mediaEnabled() && e.media != nil {
		if err := machine.Transition(PhaseExportingMedia); err != nil {
			return Result{Error: err}
		}
		if err := e.enrichMedia(ctx, machine, doc, outputPath, opts); err != nil {
			return Result{Error: err}
		}
	}

	if opts.VoiceAsText && e.transcriber != nil {
		if err := machine.Transition(PhaseExportingVoice); err != nil {
			return Result{Error: err}
		}
		if err := e.enrichVoice(ctx, machine, doc); err != nil {
			return Result{Error: err}
		}
	}

	if err := machine.Transition(PhaseExporting); err != nil {
		return Result{Error: err}
	}
	e.render(ctx, doc)

	if err := machine.Transition(PhaseWriting); err != nil {
		return Result{Error: err}
	}
	if err := e.write(ctx, doc, outputPath); err != nil {
		return Result{Error: translateWriteError(err)}
	}

	if err := machine.Transition(PhaseComplete); err != nil {
		return Result{Error: err}
	}
	e.broker.Complete(progress.Report{RunID: runID, CurrentSession: session, Phase: string(PhaseComplete)})
	e.log.Info("session exported",
		zap.String("session", session),
		zap.String("format", string(opts.Format)),
		zap.Int("messages", len(doc.Messages)),
		zap.String("path", outputPath))
	return Result{Success: true, Path: outputPath}
}

// collect streams every row in range, decodes it, and assembles the
// participant list. Returns ErrNoMessages when the range is empty.
func (e *Exporter) collect(ctx context.Context, session string, opts Options) (*document, error) {
	self := extbuf.CleanAccountID(e.cfg.AccountID)

	cur := e.store.OpenCursor(session, cursorBatchSize, true, opts.Start, opts.End)
	defer cur.Close()

	var msgs []*Message
	senderSeen := map[string]bool{}
	var senderOrder []string

	for {
		batch, err := cur.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch messages: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, row := range batch {
			m := e.decodeRow(row, session, self)
			msgs = append(msgs, m)
			if m.Sender != "" && !senderSeen[m.Sender] {
				senderSeen[m.Sender] = true
				senderOrder = append(senderOrder, m.Sender)
			}
		}
	}

	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}

	doc := &document{
		Session:     session,
		SelfID:      self,
		Messages:    msgs,
		GeneratedAt: time.Now(),
	}

	names, err := e.contacts.DisplayNames(ctx, []string{session})
	if err != nil {
		e.log.Warn("resolve session name", zap.String("session", session), zap.Error(err))
	}
	doc.SessionName = names[session]
	if doc.SessionName == "" {
		doc.SessionName = session
	}

	doc.Members = e.resolveMembers(ctx, session, senderOrder, opts)
	return doc, nil
}

// decodeRow turns one raw row into a Message: decoded content,
// canonical type, preview text, effective sender.
func (e *Exporter) decodeRow(row store.RawRow, session, self string) *Message {
	content := decode.MessageContent(row.Content, row.CompressContent)
	typ := wxmsg.Classify(row.LocalType, content)

	m := &Message{
		Row:     row,
		Type:    typ,
		Content: content,
		Preview: wxmsg.PreviewText(row.LocalType, content, ""),
		Sender:  row.Sender,
	}
	m.Text = m.Preview
	if row.IsSender {
		m.Sender = self
	}

	if typ == wxmsg.System {
		// System notices carry no sender column; revoke notices are
		// attributed to whoever revoked, everything else to the
		// session itself.
		switch revoke := wxmsg.DetectRevoke(content); {
		case revoke.SelfRevoke:
			m.Sender = self
		case revoke.RevokerID != "":
			m.Sender = revoke.RevokerID
		default:
			m.Sender = session
		}
	}
	if typ == wxmsg.Record {
		m.Records = wxmsg.ParseRecordItems(content)
	}
	return m
}

// resolveMembers builds the participant list: contact rows merged with
// group nicknames from the room's ext_buffer. First writer wins per
// field.
func (e *Exporter) resolveMembers(ctx context.Context, session string, senders []string, opts Options) []*Member {
	ids := senders
	if strings.HasSuffix(session, "@chatroom") {
		roomMembers, err := e.contacts.GroupMembers(ctx, session)
		if err != nil {
			e.log.Warn("load group members", zap.String("session", session), zap.Error(err))
		}
		seen := map[string]bool{}
		for _, id := range ids {
			seen[id] = true
		}
		for _, id := range roomMembers {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	var nicknames extbuf.NicknameMap
	if strings.HasSuffix(session, "@chatroom") {
		buf, err := e.contacts.RoomExtBuffer(ctx, session)
		if err != nil {
			e.log.Warn("load room ext_buffer", zap.String("session", session), zap.Error(err))
		}
		nicknames = extbuf.ParseNicknames(buf, ids)
	}

	var avatars map[string]string
	if opts.ExportAvatars {
		var err error
		avatars, err = e.contacts.AvatarURLs(ctx, ids)
		if err != nil {
			e.log.Warn("load avatars", zap.Error(err))
		}
	}

	members := make([]*Member, 0, len(ids))
	for _, id := range ids {
		member := &Member{ID: id}
		if c, err := e.contacts.Contact(ctx, id); err == nil && c != nil {
			member.Merge(Member{Nickname: c.Nickname, Remark: c.Remark, Avatar: c.Avatar})
		}
		member.Merge(Member{
			GroupNickname: nicknames.Resolve(id),
			Avatar:        avatars[id],
		})
		members = append(members, member)
	}
	return members
}

// enrichMedia exports media files for enabled kinds with bounded
// concurrency. Item failures are silent: the row keeps its placeholder
// text.
func (e *Exporter) enrichMedia(ctx context.Context, machine *phaseMachine, doc *document, outputPath string, opts Options) error {
	var targets []*Message
	for _, m := range doc.Messages {
		if opts.kindEnabled(m.Row.LocalType) {
			targets = append(targets, m)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	mediaDir := filepath.Join(filepath.Dir(outputPath), "media")
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	// Duplicate rows share one slot per (type, id) key; claiming the
	// slot under the lock and exporting inside its Once keeps the
	// decrypt at-most-once even when duplicates race.
	type mediaSlot struct {
		once sync.Once
		item *MediaItem
	}
	var mu sync.Mutex
	seen := map[string]*mediaSlot{}
	done := 0

	limit := sched.Clamp(opts.Concurrency, defaultConcurrency, sched.MaxConcurrency)
	_, err := sched.Map(ctx, targets, limit, func(ctx context.Context, m *Message, _ int) (struct{}, error) {
		key := fmt.Sprintf("%d_%d", m.Row.LocalType, m.Row.LocalID)

		mu.Lock()
		slot, ok := seen[key]
		if !ok {
			slot = &mediaSlot{}
			seen[key] = slot
		}
		mu.Unlock()

		slot.once.Do(func() {
			item, exportErr := e.media.ExportMedia(ctx, doc.Session, m.Row, mediaDir)
			if exportErr != nil {
				e.log.Warn("media export failed",
					zap.Int64("local_id", m.Row.LocalID),
					zap.Int64("type", m.Row.LocalType),
					zap.Error(exportErr))
				return
			}
			slot.item = item
		})
		m.Media = slot.item

		mu.Lock()
		done++
		current := done
		mu.Unlock()
		e.broker.Report(progress.Report{
			RunID:          doc.RunID,
			CurrentSession: doc.Session,
			Phase:          string(machine.Current()),
			PhaseProgress:  current,
			PhaseTotal:     len(targets),
			PhaseLabel:     "导出媒体文件",
		})
		return struct{}{}, nil
	})
	return err
}

// enrichVoice transcribes voice rows, consulting the persistent cache
// first. A failed row keeps an empty transcript and renders as the
// fixed failure placeholder.
func (e *Exporter) enrichVoice(ctx context.Context, machine *phaseMachine, doc *document) error {
	var targets []*Message
	for _, m := range doc.Messages {
		if m.Type == wxmsg.Voice {
			targets = append(targets, m)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	if err := e.transcriber.EnsureModel(ctx, func(done, total int64) {
		e.broker.Publish(progress.Event{
			Kind: progress.KindModel,
			Report: progress.Report{
				RunID:         doc.RunID,
				Phase:         string(machine.Current()),
				PhaseProgress: int(done),
				PhaseTotal:    int(total),
				PhaseLabel:    "下载语音识别模型",
			},
		})
	}); err != nil {
		return fmt.Errorf("ensure speech model: %w", err)
	}

	var mu sync.Mutex
	done := 0

	_, err := sched.Map(ctx, targets, voiceConcurrency, func(ctx context.Context, m *Message, _ int) (struct{}, error) {
		if e.cache != nil {
			if text, found, err := e.cache.GetTranscript(ctx, doc.Session, m.Row.LocalID); err == nil && found {
				m.Transcript = text
				return struct{}{}, nil
			}
		}

		text, err := e.transcriber.Transcribe(ctx, doc.Session, m.Row)
		if err != nil {
			e.log.Warn("transcription failed",
				zap.Int64("local_id", m.Row.LocalID),
				zap.Error(err))
		} else {
			m.Transcript = text
			if e.cache != nil && text != "" {
				if err := e.cache.PutTranscript(ctx, store.Transcript{
					Session: doc.Session,
					LocalID: m.Row.LocalID,
					Text:    text,
				}); err != nil {
					e.log.Warn("cache transcript", zap.Error(err))
				}
			}
		}

		mu.Lock()
		done++
		current := done
		mu.Unlock()
		e.broker.Report(progress.Report{
			RunID:          doc.RunID,
			CurrentSession: doc.Session,
			Phase:          string(machine.Current()),
			PhaseProgress:  current,
			PhaseTotal:     len(targets),
			PhaseLabel:     "语音转文字",
		})
		return struct{}{}, nil
	})
	return err
}

// render finalizes message order and text: voice placeholders, media
// substitution, and transfer descriptions.
func (e *Exporter) render(ctx context.Context, doc *document) {
	sort.SliceStable(doc.Messages, func(i, j int) bool {
		a, b := doc.Messages[i], doc.Messages[j]
		if a.Row.CreateTime != b.Row.CreateTime {
			return a.Row.CreateTime < b.Row.CreateTime
		}
		return a.Row.LocalID < b.Row.LocalID
	})

	nicknames := extbuf.NicknameMap{}
	for _, m := range doc.Members {
		if m.GroupNickname != "" {
			nicknames[m.ID] = m.GroupNickname
		}
	}

	for _, m := range doc.Messages {
		m.Text = wxmsg.RenderText(m.Row.LocalType, m.Content, doc.Opts.VoiceAsText, m.Transcript)

		if m.Type == wxmsg.Transfer {
			if payer, receiver, ok := wxmsg.TransferParties(m.Content); ok {
				note := e.resolvePartyName(ctx, doc, nicknames, payer) +
					" 转账给 " +
					e.resolvePartyName(ctx, doc, nicknames, receiver)
				m.TransferNote = note
				m.Text = annotateTransfer(m.Text, note)
				m.Preview = annotateTransfer(m.Preview, note)
			}
		}
	}
}

// resolvePartyName names a transfer party: self becomes the group
// nickname or 我, others resolve group nickname then contact name.
func (e *Exporter) resolvePartyName(ctx context.Context, doc *document, nicknames extbuf.NicknameMap, username string) string {
	if username == doc.SelfID || extbuf.CleanAccountID(username) == doc.SelfID {
		if nick := nicknames.Resolve(username, doc.SelfID); nick != "" {
			return nick
		}
		return "我"
	}
	if nick := nicknames.Resolve(username); nick != "" {
		return nick
	}
	if names, err := e.contacts.DisplayNames(ctx, []string{username}); err == nil {
		if name := names[username]; name != "" {
			return name
		}
	}
	return username
}

// write dispatches to the format writer.
func (e *Exporter) write(ctx context.Context, doc *document, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	var writeErr error
	switch doc.Opts.Format {
	case FormatChatlab:
		writeErr = writeChatlab(f, doc)
	case FormatChatlabJSONL:
		writeErr = writeChatlabJSONL(f, doc)
	case FormatJSON:
		writeErr = writeDetailedJSON(f, doc)
	case FormatTXT:
		writeErr = writeTXT(f, doc)
	case FormatWeClone:
		writeErr = writeWeClone(f, doc)
	case FormatHTML:
		writeErr = e.writeHTML(ctx, f, doc, outputPath)
	default:
		writeErr = fmt.Errorf("unsupported format %q", doc.Opts.Format)
	}

	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		// A half-written file is worse than none.
		_ = os.Remove(outputPath)
	}
	return writeErr
}
