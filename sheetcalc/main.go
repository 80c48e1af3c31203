// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Command sheetcalc loads, edits, recomputes and converts sheets.
//
// Sheets are read from JSON documents, CSV or XLSX files (by extension),
// and written as JSON, XLSX, ODS or PDF.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/UNO-SOFT/zlog/v2"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/UNO-SOFT/calcsheet"
	"github.com/UNO-SOFT/calcsheet/formula"
	"github.com/UNO-SOFT/calcsheet/ods"
	"github.com/UNO-SOFT/calcsheet/pdf"
	"github.com/UNO-SOFT/calcsheet/xlsx"
)

var verbose zlog.VerboseVar
var logger = zlog.NewLogger(zlog.MaybeConsoleHandler(&verbose, os.Stderr)).SLog()

func main() {
	if err := Main(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Error("MAIN", "error", err)
		os.Exit(1)
	}
}

func Main() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	ffOpts := []ff.Option{
		ff.WithEnvVarPrefix("CALCSHEET"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithAllowMissingConfigFile(true),
	}
	var charset string
	var sheetName string
	commonFlags := func(f *flag.FlagSet) {
		f.Var(&verbose, "v", "logging verbosity")
		f.String("config", "", "config file (key value lines)")
		f.StringVar(&charset, "charset", calcsheet.EncName, "csv charset name")
		f.StringVar(&sheetName, "sheet", "", "worksheet name of xlsx input (default: the first)")
	}

	fsEval := flag.NewFlagSet("eval", flag.ContinueOnError)
	commonFlags(fsEval)
	var edits editsFlag
	fsEval.Var(&edits, "set", "POS=TEXT edit applied before printing (can be repeated)")
	flagWrite := fsEval.Bool("w", false, "write the edited document back (json input only)")
	evalCmd := ffcli.Command{Name: "eval", FlagSet: fsEval, Options: ffOpts,
		ShortUsage: "sheetcalc eval [-set A1=text]... [-w] doc.json|in.csv|in.xlsx",
		ShortHelp:  "compute a sheet and print its values as CSV",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			fn := args[0]
			if *flagWrite && !isJSON(fn) {
				return fmt.Errorf("%q: -w needs a json document", fn)
			}
			sheet, err := load(ctx, fn, charset, sheetName)
			if err != nil {
				return err
			}
			for _, e := range edits {
				grow(sheet, e.pos)
				sheet.SetCellData(e.pos, e.text)
				stats := sheet.LastPass()
				logger.Info("set", "cell", e.pos.String(), "data", e.text,
					"evaluations", stats.Evaluations, "cycles", stats.Cycles)
			}
			if err = printGrid(sheet); err != nil {
				return err
			}
			if *flagWrite {
				return sheet.WriteFile(fn)
			}
			return nil
		},
	}

	fsConvert := flag.NewFlagSet("convert", flag.ContinueOnError)
	commonFlags(fsConvert)
	flagOut := fsConvert.String("o", "", "output file: .json, .xlsx, .ods or .pdf")
	flagHeader := fsConvert.Bool("header", false, "write the column labels as a header row")
	flagLandscape := fsConvert.Bool("L", false, "landscape orientation of pdf output")
	convertCmd := ffcli.Command{Name: "convert", FlagSet: fsConvert, Options: ffOpts,
		ShortUsage: "sheetcalc convert -o out.{json,xlsx,ods,pdf} in.{json,csv,xlsx}",
		ShortHelp:  "compute a sheet and write it in another format",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 || *flagOut == "" {
				return flag.ErrHelp
			}
			sheet, err := load(ctx, args[0], charset, sheetName)
			if err != nil {
				return err
			}
			return save(sheet, *flagOut, *flagHeader, *flagLandscape)
		},
	}

	fsRoot := flag.NewFlagSet("sheetcalc", flag.ContinueOnError)
	fsRoot.Var(&verbose, "v", "logging verbosity")
	app := ffcli.Command{Name: "sheetcalc", FlagSet: fsRoot, Options: ffOpts,
		ShortUsage:  "sheetcalc <subcommand> [flags] file",
		Subcommands: []*ffcli.Command{&evalCmd, &convertCmd},
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
	}
	if err := app.Parse(os.Args[1:]); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return app.Run(ctx)
}

func isJSON(fn string) bool { return strings.EqualFold(filepath.Ext(fn), ".json") }

// load reads fn by its extension: json documents, xlsx workbooks, CSV otherwise.
func load(ctx context.Context, fn, charset, sheetName string) (*calcsheet.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ev := formula.New()
	opts := []calcsheet.Option{calcsheet.WithLogger(logger)}
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".json":
		return calcsheet.ReadFile(fn, ev, opts...)
	case ".xlsx":
		fh, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		return xlsx.ReadSheet(fh, sheetName, ev, opts...)
	}
	cr, err := calcsheet.OpenCsv(fn, charset)
	if err != nil {
		return nil, err
	}
	defer cr.Close()
	name := "Sheet1"
	if fn != "" && fn != "-" {
		name = strings.TrimSuffix(filepath.Base(fn), filepath.Ext(fn))
	}
	sheet := calcsheet.New(ev, append(opts, calcsheet.WithName(name), calcsheet.WithExtent(0, 0))...)
	if err = sheet.LoadCSV(cr.Reader); err != nil {
		return nil, fmt.Errorf("%q: %w", fn, err)
	}
	return sheet, nil
}

// save writes the sheet to fn by its extension.
func save(sheet *calcsheet.Sheet, fn string, header, landscape bool) error {
	ext := strings.ToLower(filepath.Ext(fn))
	if ext == ".json" {
		return sheet.WriteFile(fn)
	}
	fh, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fh.Close()
	var w calcsheet.Writer
	switch ext {
	case ".xlsx":
		w = xlsx.NewWriter(fh)
	case ".ods":
		w = ods.NewWriter(fh)
	case ".pdf":
		alternate := pdf.DefaultAlternateColor
		w = pdf.NewWriter(fh, pdf.Options{Landscape: landscape, AlternateColor: &alternate})
	default:
		return fmt.Errorf("%q: unknown output format", fn)
	}
	if err = sheet.Export(w, header); err != nil {
		w.Close()
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	return fh.Close()
}

// grow extends the sheet until p is in range.
func grow(sheet *calcsheet.Sheet, p calcsheet.Position) {
	for sheet.RowCount() <= p.Row {
		sheet.AddRow()
	}
	want := calcsheet.ColumnIndex(p.Column)
	for !sheet.InRange(p) && calcsheet.ColumnIndex(sheet.ColumnLabel(sheet.ColumnCount()-1)) < want {
		sheet.AddColumn()
	}
}

func printGrid(sheet *calcsheet.Sheet) error {
	cw := csv.NewWriter(os.Stdout)
	columns := sheet.Columns()
	record := make([]string, len(columns))
	for row := 0; row < sheet.RowCount(); row++ {
		for i, col := range columns {
			record[i] = ""
			if c := sheet.At(calcsheet.Position{Column: col, Row: row}); c != nil {
				record[i] = calcsheet.FormatValue(c.CurrentValue())
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type edit struct {
	pos  calcsheet.Position
	text string
}

// editsFlag collects POS=TEXT pairs.
type editsFlag []edit

func (f *editsFlag) String() string {
	parts := make([]string, len(*f))
	for i, e := range *f {
		parts[i] = e.pos.String() + "=" + e.text
	}
	return strings.Join(parts, " ")
}

func (f *editsFlag) Set(s string) error {
	name, text, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("%q: want POS=TEXT", s)
	}
	p, ok := calcsheet.ParsePosition(strings.TrimSpace(name))
	if !ok {
		return fmt.Errorf("%q: %w", name, calcsheet.ErrInvalidPosition)
	}
	*f = append(*f, edit{pos: p, text: text})
	return nil
}
