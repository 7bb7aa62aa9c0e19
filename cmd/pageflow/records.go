package main

// This file contains the records and scenarios commands, which inspect data
// sources and the scenario registry without opening a browser.

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"pageflow/internal/config"
	"pageflow/internal/core"
	"pageflow/internal/data"
	"pageflow/internal/scenario"
)

func (a *App) recordsCommand() *cli.Command {
	return &cli.Command{
		Name:      "records",
		Usage:     "Load a data source and print its records",
		ArgsUsage: "data.csv|data.xlsx|data.json",
		Action:    a.records,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sheet", Usage: "worksheet name for workbooks"},
			&cli.StringFlag{Name: "format", Usage: "force the source format: csv, xlsx, json"},
			&cli.StringFlag{Name: "delimiter", Usage: "cell delimiter for delimited files"},
			&cli.StringFlag{Name: "filter", Usage: "keep records matching `Field=value`"},
			&cli.BoolFlag{Name: "strict", Usage: "reject the source on a malformed row"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "table", Usage: "table or json"},
		},
	}
}

func (a *App) records(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("records: exactly one data file is required", ExitError)
	}
	output := c.String("output")
	if output != "table" && output != "json" {
		return cli.Exit(fmt.Sprintf("--output must be 'table' or 'json', got %q", output), ExitError)
	}

	src := data.DataSource{
		Path:      c.Args().First(),
		Sheet:     c.String("sheet"),
		Format:    data.Format(c.String("format")),
		Delimiter: c.String("delimiter"),
	}
	policy := data.RowLenient
	if c.Bool("strict") {
		policy = data.RowStrict
	}
	warn := func(w data.RowDecodeWarning) {
		a.logger.Warn().Str("source", w.Source).Int("line", w.Line).Msg(w.String())
	}

	records, err := data.Load(src, data.WithRowPolicy(policy), data.WithWarnFunc(warn))
	if err != nil {
		return cli.Exit(err.Error(), ExitError)
	}
	if f := c.String("filter"); f != "" {
		field, value, err := config.ParseFilter(f)
		if err != nil {
			return cli.Exit(err.Error(), ExitError)
		}
		records = data.Filter(records, field, value)
	}

	if output == "json" {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if records == nil {
			records = []core.Record{}
		}
		return enc.Encode(records)
	}
	return a.printRecords(records)
}

func (a *App) printRecords(records []core.Record) error {
	if len(records) == 0 {
		fmt.Fprintln(a.stdout, "No records")
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fields := records[0].Fields()
	fmt.Fprintln(tw, "#\t"+strings.Join(fields, "\t"))
	for _, r := range records {
		row := make([]string, 0, len(fields)+1)
		row = append(row, strconv.Itoa(r.Index()))
		for _, f := range fields {
			row = append(row, r.Value(f))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "\n%d records\n", len(records))
	return nil
}

func (a *App) scenariosCommand() *cli.Command {
	return &cli.Command{
		Name:   "scenarios",
		Usage:  "List the registered scenarios and the record fields they read",
		Action: a.scenarios,
	}
}

func (a *App) scenarios(c *cli.Context) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFIELDS\tDESCRIPTION")
	for _, info := range scenario.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, strings.Join(info.Fields, ","), info.Description)
	}
	return tw.Flush()
}
