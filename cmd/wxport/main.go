package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/weflow/wxport/internal/app"
	"github.com/weflow/wxport/internal/export"
)

func main() {
	configFlag := flag.String("config", "", "config file path (default ~/.wxport/config.toml)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")

	formatFlag := flag.String("format", "", "output format: chatlab, chatlab-jsonl, json, html, txt, weclone")
	outFlag := flag.String("out", "", "output directory for batch exports")
	fileFlag := flag.String("o", "", "exact output file (single session only)")
	startFlag := flag.String("start", "", "earliest message date, 2006-01-02 or \"2006-01-02 15:04:05\"")
	endFlag := flag.String("end", "", "latest message date, inclusive")

	mediaFlag := flag.Bool("media", false, "export all media kinds")
	imagesFlag := flag.Bool("images", false, "export images")
	voicesFlag := flag.Bool("voices", false, "export voice audio")
	videosFlag := flag.Bool("videos", false, "export videos")
	emojisFlag := flag.Bool("emojis", false, "export stickers")
	avatarsFlag := flag.Bool("avatars", false, "download member avatars")
	voiceTextFlag := flag.Bool("voice-text", false, "transcribe voice messages to text")

	concurrencyFlag := flag.Int("concurrency", 0, "media worker count (0 = default)")
	columnsFlag := flag.String("columns", "", "comma-separated txt column subset")
	compactFlag := flag.Bool("compact", false, "columnar txt with the default five columns")
	layoutFlag := flag.String("layout", "", "batch media layout: shared or per-session")
	namesFlag := flag.String("names", "", "sender name preference: remark, nickname, group-nickname")
	limitFlag := flag.Int("limit", 10, "history entries shown by runs")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]
	sessions := args[1:]

	switch command {
	case "export", "stats":
		if len(sessions) == 0 {
			fmt.Fprintf(os.Stderr, "usage: wxport %s <session>...\n", command)
			os.Exit(1)
		}
	case "runs":
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if *fileFlag != "" && len(sessions) != 1 {
		fmt.Fprintln(os.Stderr, "error: -o needs exactly one session")
		os.Exit(1)
	}

	start, err := parseTime(*startFlag, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: bad -start: %v\n", err)
		os.Exit(1)
	}
	end, err := parseTime(*endFlag, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: bad -end: %v\n", err)
		os.Exit(1)
	}

	opts := export.Options{
		Format:         export.Format(*formatFlag),
		Start:          start,
		End:            end,
		ExportMedia:    *mediaFlag,
		ExportImages:   *imagesFlag,
		ExportVoices:   *voicesFlag,
		ExportVideos:   *videosFlag,
		ExportEmojis:   *emojisFlag,
		ExportAvatars:  *avatarsFlag,
		VoiceAsText:    *voiceTextFlag,
		Concurrency:    *concurrencyFlag,
		TxtColumns:     splitColumns(*columnsFlag),
		CompactColumns: *compactFlag,
		Layout:         export.Layout(*layoutFlag),
		NamePreference: export.NamePreference(*namesFlag),
	}

	fxApp := fx.New(
		app.Module(app.Params{
			ConfigPath: *configFlag,
			Request: app.Request{
				Command:    command,
				Sessions:   sessions,
				OutDir:     *outFlag,
				OutputFile: *fileFlag,
				Options:    opts,
				JSON:       *jsonFlag,
				RunsLimit:  *limitFlag,
			},
		}),
		fx.NopLogger,
	)

	fxApp.Run()
}

// parseTime accepts a date or a date-time; a bare end date covers its
// whole day.
func parseTime(s string, endOfDay bool) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.Local); err == nil {
		return t.Unix(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return 0, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t.Unix(), nil
}

func splitColumns(s string) []string {
	if s == "" {
		return nil
	}
	var cols []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wxport [flags] <command> [session...]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  export <session>...   Export sessions to the chosen format")
	fmt.Fprintln(os.Stderr, "  stats <session>...    Estimate export size and duration")
	fmt.Fprintln(os.Stderr, "  runs                  Show recent export run history")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "flags:")
	flag.PrintDefaults()
}
