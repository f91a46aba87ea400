package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/weflow/wxport/internal/sched"
)

const avatarConcurrency = 4

// avatarClient fetches member avatars; the timeout keeps one dead CDN
// host from stalling a run.
var avatarClient = &http.Client{Timeout: 15 * time.Second}

// fetchAvatars downloads member avatar URLs into an avatars directory
// next to the output file and points each member at the local copy. A
// failed download keeps the remote URL.
func (e *Exporter) fetchAvatars(ctx context.Context, doc *document, outputPath string) {
	var targets []*Member
	for _, m := range doc.Members {
		if strings.HasPrefix(m.Avatar, "http://") || strings.HasPrefix(m.Avatar, "https://") {
			targets = append(targets, m)
		}
	}
	if len(targets) == 0 {
		return
	}

	avatarDir := filepath.Join(filepath.Dir(outputPath), "avatars")
	if err := os.MkdirAll(avatarDir, 0755); err != nil {
		e.log.Warn("create avatar dir", zap.Error(err))
		return
	}

	_, _ = sched.Map(ctx, targets, avatarConcurrency, func(ctx context.Context, m *Member, _ int) (struct{}, error) {
		name := safeFileName(m.ID) + avatarExt(m.Avatar)
		if err := downloadFile(ctx, m.Avatar, filepath.Join(avatarDir, name)); err != nil {
			e.log.Warn("avatar download failed",
				zap.String("member", m.ID),
				zap.Error(err))
			return struct{}{}, nil
		}
		m.Avatar = path.Join("avatars", name)
		return struct{}{}, nil
	})
}

func avatarExt(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	switch ext := strings.ToLower(path.Ext(rawURL)); ext {
	case ".png", ".gif", ".webp", ".jpeg":
		return ext
	}
	return ".jpg"
}

func downloadFile(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := avatarClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(f, resp.Body)
	if closeErr := f.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(dst)
	}
	return copyErr
}
