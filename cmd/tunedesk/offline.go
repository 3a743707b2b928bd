package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/smallbiznis/tunedesk/internal/report/ingest"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type fileFlags struct {
	file     string
	category string
	output   string
	verbose  bool
}

func (f *fileFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "report file (.csv or .xlsx)")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "report category: "+categoryList())
	cmd.Flags().StringVarP(&f.output, "output", "o", "json", "output format: json or yaml")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log pipeline progress to stderr")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("category")
}

func (f *fileFlags) resolve() (schema.Category, error) {
	switch f.output {
	case "json", "yaml":
	default:
		return "", fmt.Errorf("unknown output format %q", f.output)
	}
	return schema.ParseCategory(f.category)
}

func (f *fileFlags) pipeline() (*ingest.Pipeline, error) {
	log := zap.NewNop()
	if f.verbose {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}
	return ingest.New(ingest.Params{Log: log}), nil
}

func newValidateCmd() *cobra.Command {
	var flags fileFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compare a report file's header row with its category schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := flags.resolve()
			if err != nil {
				return err
			}
			p, err := flags.pipeline()
			if err != nil {
				return err
			}

			report, err := p.ValidateHeaders(cmd.Context(), flags.file, category)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd.OutOrStdout(), flags.output, report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("%w: %s", ingest.ErrMissingHeaders, strings.Join(report.Missing, ", "))
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

type ingestOutput struct {
	File         string          `json:"file" yaml:"file"`
	Category     schema.Category `json:"category" yaml:"category"`
	TotalRecords int             `json:"totalRecords" yaml:"totalRecords"`
	Summary      ingest.Summary  `json:"summary" yaml:"summary"`
	Stats        ingest.Stats    `json:"stats" yaml:"stats"`
	Records      []schema.Record `json:"records,omitempty" yaml:"records,omitempty"`
}

func newIngestCmd() *cobra.Command {
	var (
		flags       fileFlags
		withRecords bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse a report file offline and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := flags.resolve()
			if err != nil {
				return err
			}
			p, err := flags.pipeline()
			if err != nil {
				return err
			}

			result, err := p.Ingest(cmd.Context(), flags.file, category)
			if err != nil {
				return err
			}

			out := ingestOutput{
				File:         filepath.Base(flags.file),
				Category:     result.Category,
				TotalRecords: len(result.Records),
				Summary:      result.Summary,
				Stats:        result.Stats,
			}
			if withRecords {
				out.Records = result.Records
			}
			return writeOutput(cmd.OutOrStdout(), flags.output, out)
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&withRecords, "records", false, "include the parsed records")
	return cmd
}

func writeOutput(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func categoryList() string {
	names := make([]string, len(schema.Categories))
	for i, c := range schema.Categories {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
