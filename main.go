package main

import (
	"os"

	"log/slog"

	"github.com/jessevdk/go-flags"
)

var globalOption struct {
	Verbose bool           `short:"v" long:"verbose" description:"show verbose logs"`
	Quiet   bool           `short:"q" long:"quiet" description:"suppress logs"`
	JsonLog bool           `long:"json-log" description:"use json format for logging"`
	Archive flags.Filename `short:"f" long:"archive" description:"archive file" env:"ZIPINSPECT_ARCHIVE"`
}

func archiveFilename() string {
	return string(globalOption.Archive)
}

func init_log() {
	var level slog.Level = slog.LevelInfo
	if globalOption.Verbose {
		level = slog.LevelDebug
	} else if globalOption.Quiet {
		level = slog.LevelWarn
	}
	slog.SetLogLoggerLevel(level)
	if globalOption.JsonLog {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}
}

func main() {
	var err error
	var ziplist ZipList
	var zipdump ZipDump
	var vercmd VersionCmd
	parser := flags.NewParser(&globalOption, flags.Default)
	_, err = parser.AddCommand("list", "list archive entries", "list zip entries as a table", &ziplist)
	if err != nil {
		slog.Error("addcommand list", "error", err)
		panic(err)
	}
	_, err = parser.AddCommand("dump", "dump one entry", "decompress one entry to stdout or a file", &zipdump)
	if err != nil {
		slog.Error("addcommand dump", "error", err)
		panic(err)
	}
	_, err = parser.AddCommand("version", "show version", "show version", &vercmd)
	if err != nil {
		slog.Error("addcommand version", "error", err)
		panic(err)
	}
	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		slog.Error("error exit", "error", err)
		os.Exit(1)
	}
}
