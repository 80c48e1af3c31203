// Copyright 2021, 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Command csv2pdf computes a CSV file as a sheet (fields starting with "="
// are formulas) and prints its values as a PDF table.
package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/UNO-SOFT/zlog/v2"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/UNO-SOFT/calcsheet"
	"github.com/UNO-SOFT/calcsheet/formula"
	"github.com/UNO-SOFT/calcsheet/pdf"
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
	alternateColor := pdf.DefaultAlternateColor

	fs := flag.NewFlagSet("csv2pdf", flag.ContinueOnError)
	fs.Var(&verbose, "v", "logging verbosity")
	flagEnc := fs.String("charset", calcsheet.EncName, "csv charset name")
	flagOut := fs.String("o", "", "output file name (default input file + .pdf)")
	fs.Var(&alternateColor, "alternate-color", "alternate row background color")
	flagNoAlternate := fs.Bool("no-alternate", false, "do not color alternate rows")
	flagLandscape := fs.Bool("L", false, "landscape orientation (default: portrait)")
	flagFontSize := fs.Float64("f", 8, "font size")
	flagHeader := fs.Bool("header", true, "print the column labels as header")

	app := ffcli.Command{Name: "csv2pdf", FlagSet: fs,
		ShortUsage: "csv2pdf [flags] in.csv",
		Exec: func(ctx context.Context, args []string) error {
			fn := "-"
			if len(args) != 0 {
				fn = args[0]
			}
			cr, err := calcsheet.OpenCsv(fn, *flagEnc)
			if err != nil {
				return err
			}
			defer cr.Close()

			sheet := calcsheet.New(formula.New(),
				calcsheet.WithExtent(0, 0), calcsheet.WithLogger(logger))
			if err = sheet.LoadCSV(cr.Reader); err != nil {
				return err
			}
			logger.Debug("loaded", "rows", sheet.RowCount(), "columns", sheet.ColumnCount())

			opts := pdf.Options{Landscape: *flagLandscape, FontSize: *flagFontSize}
			if !*flagNoAlternate {
				opts.AlternateColor = &alternateColor
			}
			var buf bytes.Buffer
			w := pdf.NewWriter(&buf, opts)
			if err = sheet.Export(w, *flagHeader); err != nil {
				return err
			}
			if err = w.Close(); err != nil {
				return err
			}

			out := *flagOut
			if out == "" && fn != "-" {
				out = fn + ".pdf"
			}
			if out == "" || out == "-" {
				_, err = os.Stdout.Write(buf.Bytes())
				return err
			}
			return os.WriteFile(out, buf.Bytes(), 0644)
		},
	}

	args := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if strings.HasPrefix(a, "-f") && len(a) > 2 && '0' <= a[2] && a[2] <= '9' {
			args = append(args, "-f", a[2:])
		} else {
			args = append(args, a)
		}
	}
	logger.Debug("args", "original", os.Args[1:], "fixed", args)
	if err := app.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return app.Run(ctx)
}
