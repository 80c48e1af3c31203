// Copyright 2020, 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Command csv2ods computes CSV files as sheets (fields starting with "="
// are formulas) and writes them into one ODS or XLSX workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/UNO-SOFT/zlog/v2"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/UNO-SOFT/calcsheet"
	"github.com/UNO-SOFT/calcsheet/formula"
	"github.com/UNO-SOFT/calcsheet/ods"
	"github.com/UNO-SOFT/calcsheet/xlsx"
)

var verbose zlog.VerboseVar
var logger = zlog.NewLogger(zlog.MaybeConsoleHandler(&verbose, os.Stderr)).SLog()

func main() {
	if err := Main(); err != nil {
		logger.Error("MAIN", "error", err)
		os.Exit(1)
	}
}

func Main() error {
	fs := flag.NewFlagSet("csv2ods", flag.ContinueOnError)
	fs.Var(&verbose, "v", "logging verbosity")
	flagEnc := fs.String("charset", calcsheet.EncName, "csv charset name")
	flagHeader := fs.Bool("header", false, "write the column labels as a header row")

	app := ffcli.Command{Name: "csv2ods", FlagSet: fs,
		ShortUsage: "csv2ods [flags] out.{ods,xlsx} [name:]in.csv...",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return flag.ErrHelp
			}
			return convert(ctx, args[0], args[1:], *flagEnc, *flagHeader)
		},
	}
	if err := app.Parse(os.Args[1:]); err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return app.Run(ctx)
}

func convert(ctx context.Context, fn string, inputs []string, encName string, header bool) error {
	fh := os.Stdout
	if !(fn == "" || fn == "-") {
		var err error
		if fh, err = os.Create(fn); err != nil {
			return err
		}
	}
	defer fh.Close()
	var w calcsheet.Writer
	if strings.HasSuffix(fn, ".xlsx") {
		w = xlsx.NewWriter(fh)
	} else {
		w = ods.NewWriter(fh)
	}

	for i, fn := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		sheetName := fmt.Sprintf("Sheet%d", i+1)
		if i := strings.IndexByte(fn, ':'); i >= 0 {
			sheetName, fn = fn[:i], fn[i+1:]
		} else if fn != "" && fn != "-" {
			sheetName = strings.TrimSuffix(filepath.Base(fn), ".csv")
		}
		if err := copyFile(w, sheetName, encName, fn, header); err != nil {
			return fmt.Errorf("%q: %w", fn, err)
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	return fh.Close()
}

func copyFile(w calcsheet.Writer, sheetName, encName, fn string, header bool) error {
	cr, err := calcsheet.OpenCsv(fn, encName)
	if err != nil {
		return err
	}
	defer cr.Close()
	sheet := calcsheet.New(formula.New(),
		calcsheet.WithName(sheetName), calcsheet.WithExtent(0, 0),
		calcsheet.WithLogger(logger))
	if err := sheet.LoadCSV(cr.Reader); err != nil {
		return err
	}
	stats := sheet.LastPass()
	logger.Info("computed", "sheet", sheetName,
		"rows", sheet.RowCount(), "columns", sheet.ColumnCount(),
		"evaluations", stats.Evaluations, "cycles", stats.Cycles)
	if stats.Cycles != 0 {
		logger.Warn("circular references", slog.String("sheet", sheetName), slog.Int("count", stats.Cycles))
	}
	return sheet.Export(w, header)
}
