package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
)

type ZipDump struct {
	Archive  flags.Filename `short:"f" long:"archive" description:"archive file"`
	Output   flags.Filename `short:"o" long:"output" description:"output file (default: stdout)"`
	NoVerify bool           `long:"no-verify" description:"skip CRC-32 check"`
}

func (cmd *ZipDump) archive() string {
	if cmd.Archive != "" {
		return string(cmd.Archive)
	}
	return archiveFilename()
}

// Execute extracts a single entry: raw payload read, decompress,
// optional CRC check, bytes out.
func (cmd *ZipDump) Execute(args []string) error {
	init_log()
	if len(args) != 1 {
		return fmt.Errorf("dump needs exactly one entry name, got %d", len(args))
	}
	ar, err := OpenArchiveFile(cmd.archive())
	if err != nil {
		slog.Error("open error", "name", cmd.archive(), "error", err)
		return err
	}
	defer ar.Close()
	var entry *Entry
	for _, e := range ar.Entries {
		if e.Name == args[0] {
			entry = e
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("entry %q not found in %s", args[0], cmd.archive())
	}
	raw, err := ar.ReadPayload(entry)
	if err != nil {
		slog.Error("read payload", "name", entry.Name, "error", err)
		return err
	}
	data, err := Decompress(entry.Method, raw, entry.UncompressedSize)
	if err != nil {
		slog.Error("decompress", "name", entry.Name, "method", entry.Method, "error", err)
		return err
	}
	if !cmd.NoVerify {
		if err := VerifyEntry(entry, data); err != nil {
			slog.Error("verify", "name", entry.Name, "error", err)
			return err
		}
	}
	var out io.Writer = os.Stdout
	if cmd.Output != "" {
		fp, err := os.Create(string(cmd.Output))
		if err != nil {
			slog.Error("create output", "name", cmd.Output, "error", err)
			return err
		}
		defer fp.Close()
		out = fp
	}
	written, err := out.Write(data)
	if err != nil {
		slog.Error("write", "name", entry.Name, "error", err, "written", written)
		return err
	}
	slog.Debug("dump done", "name", entry.Name, "written", written)
	return nil
}
