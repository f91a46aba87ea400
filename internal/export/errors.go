package export

import (
	"errors"
	"strings"
)

// ErrNoMessages is returned when a session has no rows in the
// requested range. The text is user-facing.
var ErrNoMessages = errors.New("该会话在指定时间范围内没有消息")

// ErrFileBusy replaces write errors that look like the destination
// file being held open by another program.
var ErrFileBusy = errors.New("文件已经打开，请关闭后再导出")

var busyMarkers = []string{
	"EBUSY",
	"resource busy",
	"locked",
	"being used by another process",
}

// translateWriteError maps recognizable busy/locked failures to the
// user-facing message and passes everything else through.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range busyMarkers {
		if strings.Contains(msg, marker) {
			return ErrFileBusy
		}
	}
	return err
}
