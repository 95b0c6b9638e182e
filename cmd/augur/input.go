package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/peter-kozarec/augur/pkg/data/csv"
	"github.com/peter-kozarec/augur/pkg/data/duckdb"
	"github.com/peter-kozarec/augur/pkg/data/mapper"
	"github.com/spf13/cobra"
)

// inputFlags select where a series is read from.
type inputFlags struct {
	path       string
	query      string
	conditions []string
}

func (f *inputFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.path, "input", "i", "", "Series file (.csv, .bin, .parquet) or DuckDB database")
	fs.StringVar(&f.query, "query", "", "SQL returning ds and y columns, run through DuckDB")
	fs.StringSliceVar(&f.conditions, "condition", nil, "Boolean CSV column used by conditional seasonalities (repeatable)")
}

// load picks the reader by extension; a query always goes through DuckDB
// with the input as its database (or an in-memory one for plain files).
func (f *inputFlags) load(ctx context.Context) ([]common.Observation, error) {
	ext := strings.ToLower(filepath.Ext(f.path))
	if f.query != "" {
		dsn := f.path
		if ext == ".csv" || ext == ".parquet" {
			dsn = ""
		}
		return loadDuckDB(ctx, dsn, func(r *duckdb.Reader) ([]common.Observation, error) {
			return r.LoadSeries(ctx, f.query)
		})
	}

	switch ext {
	case ".csv":
		return csv.ReadFile(f.path, csv.WithConditionColumns(f.conditions...))
	case ".bin":
		return mapper.LoadSeries(f.path)
	case ".parquet":
		return loadDuckDB(ctx, "", func(r *duckdb.Reader) ([]common.Observation, error) {
			return r.LoadFile(ctx, f.path)
		})
	default:
		return nil, fmt.Errorf("unsupported input %q, use --query for database files", f.path)
	}
}

func loadDuckDB(ctx context.Context, dsn string, load func(r *duckdb.Reader) ([]common.Observation, error)) ([]common.Observation, error) {
	r := duckdb.NewReader(dsn)
	if err := r.Connect(); err != nil {
		return nil, err
	}
	defer r.Close()
	return load(r)
}

// openOutput returns stdout for an empty path or "-".
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create %q: %w", path, err)
	}
	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
