package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/jessevdk/go-flags"
	"github.com/schollz/progressbar/v3"
)

type ZipList struct {
	Archive   flags.Filename `short:"f" long:"archive" description:"archive file"`
	Verify    bool           `long:"verify" description:"decompress entries and verify CRC-32"`
	CRC       bool           `long:"crc" description:"show CRC-32 column"`
	Parallel  uint           `short:"p" long:"parallel" description:"parallel verification (0: NumCPU)" default:"1"`
	Progress  bool           `long:"progress" description:"show progress bar while verifying"`
	Watch     bool           `short:"w" long:"watch" description:"re-list when the archive changes"`
	NameWidth int            `long:"name-width" description:"max name column width (0: from terminal)"`

	output io.Writer
}

func (cmd *ZipList) archive() string {
	if cmd.Archive != "" {
		return string(cmd.Archive)
	}
	return archiveFilename()
}

func (cmd *ZipList) Execute(args []string) error {
	init_log()
	out := cmd.output
	if out == nil {
		out = os.Stdout
	}
	shutdown, err := init_otel("zipinspect")
	if err == nil {
		defer shutdown()
	}
	if err := traceOp(context.Background(), "ziplist", func(ctx context.Context) error {
		return cmd.listOnce(out)
	}); err != nil {
		return err
	}
	if cmd.Watch {
		return cmd.watch(out)
	}
	return nil
}

func (cmd *ZipList) listOnce(out io.Writer) error {
	ar, err := OpenArchiveFile(cmd.archive())
	if err != nil {
		slog.Error("open error", "name", cmd.archive(), "error", err)
		return err
	}
	defer ar.Close()
	statuses := make([]Status, len(ar.Entries))
	if cmd.Verify {
		if err := cmd.verifyEntries(ar, statuses); err != nil {
			return err
		}
	}
	rows := make([]Row, 0, len(ar.Entries))
	for idx, e := range ar.Entries {
		row := Row{
			e.Name,
			strconv.FormatUint(e.UncompressedSize, 10),
			strconv.FormatUint(e.CompressedSize, 10),
			e.Method.String(),
			modifiedString(e),
		}
		if cmd.CRC {
			row = append(row, fmt.Sprintf("%08x", e.CRC32))
		}
		row = append(row, statuses[idx].String())
		rows = append(rows, row)
	}
	lines, err := RenderTable(cmd.columns(), rows, DefaultRenderOptions())
	if err != nil {
		slog.Error("render", "error", err)
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	var failed int
	for _, st := range statuses {
		if st == StatusMismatch {
			failed++
		}
	}
	if failed != 0 {
		return fmt.Errorf("%w: %d of %d entries failed verification",
			ErrChecksumMismatch, failed, len(ar.Entries))
	}
	return nil
}

// verifyEntries decompresses and checks every non-directory entry;
// directories have no payload and stay unverified. Payloads are read
// sequentially from the single archive handle, only the decompress+CRC
// work is fanned out; statuses land at the entry's own index so the
// printed order stays central-directory order.
func (cmd *ZipList) verifyEntries(ar *Archive, statuses []Status) error {
	workers := cmd.Parallel
	if workers == 0 {
		workers = uint(runtime.NumCPU())
	}
	var todo int64
	for _, e := range ar.Entries {
		if !e.IsDir() {
			todo++
		}
	}
	var bar *progressbar.ProgressBar
	if cmd.Progress {
		bar = progressbar.Default(todo, cmd.archive())
		defer bar.Close()
	}
	type job struct {
		idx int
		raw []byte
	}
	jobs := make(chan job, 10)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				statuses[j.idx] = verifyOne(ar.Entries[j.idx], j.raw)
				// advance only once the entry is actually verified;
				// Add is safe from multiple workers
				if bar != nil {
					if err := bar.Add(1); err != nil {
						slog.Error("progressbar error", "error", err)
					}
				}
			}
		}()
	}
	var readErr error
	for idx, e := range ar.Entries {
		if e.IsDir() {
			continue
		}
		raw, err := ar.ReadPayload(e)
		if err != nil {
			slog.Error("read payload", "name", e.Name, "error", err)
			readErr = err
			break
		}
		jobs <- job{idx: idx, raw: raw}
	}
	close(jobs)
	wg.Wait()
	return readErr
}

func verifyOne(e *Entry, raw []byte) Status {
	data, err := Decompress(e.Method, raw, e.UncompressedSize)
	if errors.Is(err, ErrUnsupportedMethod) {
		slog.Info("skip entry", "name", e.Name, "method", e.Method)
		return StatusSkipped
	}
	if err != nil {
		slog.Warn("decompress failed", "name", e.Name, "error", err)
		return StatusMismatch
	}
	if err := VerifyEntry(e, data); err != nil {
		slog.Warn("verify failed", "name", e.Name, "error", err)
		return StatusMismatch
	}
	return StatusVerified
}

func (cmd *ZipList) columns() []Column {
	nameMax := cmd.NameWidth
	if nameMax == 0 {
		if w := terminalWidth(); w > 80 {
			nameMax = w - 60
		} else {
			nameMax = 40
		}
	}
	cols := []Column{
		{Label: "Name", Min: 4, Max: nameMax, Align: AlignLeft},
		{Label: "Size", Min: 6, Align: AlignRight},
		{Label: "Compressed", Min: 6, Align: AlignRight},
		{Label: "Method", Min: 6, Align: AlignLeft},
		{Label: "Modified", Min: 16, Align: AlignLeft},
	}
	if cmd.CRC {
		cols = append(cols, Column{Label: "CRC-32", Min: 8, Align: AlignRight})
	}
	return append(cols, Column{Label: "Status", Min: 7, Align: AlignLeft})
}

func modifiedString(e *Entry) string {
	if e.Modified.IsZero() {
		return ""
	}
	return e.Modified.Format("2006-01-02 15:04:05")
}

func (cmd *ZipList) watch(out io.Writer) error {
	wt, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("watcher", "error", err)
		return err
	}
	defer wt.Close()
	if err := wt.Add(cmd.archive()); err != nil {
		slog.Error("watcher add", "error", err)
		return err
	}
	for {
		select {
		case event, ok := <-wt.Events:
			if !ok {
				slog.Error("cannot process event", "event", event)
				return nil
			}
			slog.Debug("got watcher event", "event", event, "op", event.Op.String())
			if event.Has(fsnotify.Write) {
				slog.Info("modified", "name", event.Name)
				if err := cmd.listOnce(out); err != nil {
					slog.Error("relist error", "error", err)
				}
			}
		case err, ok := <-wt.Errors:
			if !ok {
				slog.Error("cannot process error", "error", err)
				return nil
			}
			slog.Info("got watcher error", "error", err)
		}
	}
}
