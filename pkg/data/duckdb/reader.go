package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/big"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/govalues/decimal"
	"github.com/marcboeker/go-duckdb"
	"github.com/peter-kozarec/augur/pkg/common"
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidValue  = errors.New("invalid value")
)

const (
	timeColumn  = "ds"
	valueColumn = "y"
	capColumn   = "cap"
	floorColumn = "floor"
)

// Reader loads series through DuckDB. Queries must name the timestamp column
// ds and the value column y; cap and floor are recognised by name, boolean
// columns become conditions and every other column a regressor.
type Reader struct {
	dataSourceName string
	db             *sql.DB
}

// NewReader prepares a reader; an empty data source name opens an in-memory
// database.
func NewReader(dataSourceName string) *Reader {
	return &Reader{
		dataSourceName: dataSourceName,
	}
}

func (r *Reader) Connect() error {
	db, err := sql.Open("duckdb", r.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open duckdb %q: %w", r.dataSourceName, err)
	}
	r.db = db
	return nil
}

func (r *Reader) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

// LoadSeries runs query and collects its rows.
func (r *Reader) LoadSeries(ctx context.Context, query string, args ...any) ([]common.Observation, error) {
	var series []common.Observation
	err := r.Load(ctx, query, func(o common.Observation) error {
		series = append(series, o)
		return nil
	}, args...)
	if err != nil {
		return nil, err
	}
	return series, nil
}

// LoadFile reads a CSV or Parquet file through DuckDB's table functions.
func (r *Reader) LoadFile(ctx context.Context, path string) ([]common.Observation, error) {
	function := "read_csv_auto"
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		function = "read_parquet"
	}
	query := fmt.Sprintf(`SELECT * FROM %s('%s') ORDER BY %s`, function, strings.ReplaceAll(path, "'", "''"), timeColumn)
	return r.LoadSeries(ctx, query)
}

// Load streams the rows of query to handler.
func (r *Reader) Load(ctx context.Context, query string, handler func(o common.Observation) error, args ...any) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error preparing query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("error reading columns: %w", err)
	}
	timeIndex, valueIndex := -1, -1
	for i, name := range columns {
		switch name {
		case timeColumn:
			timeIndex = i
		case valueColumn:
			valueIndex = i
		}
	}
	if timeIndex < 0 {
		return fmt.Errorf("%w: %q", ErrMissingColumn, timeColumn)
	}
	if valueIndex < 0 {
		return fmt.Errorf("%w: %q", ErrMissingColumn, valueColumn)
	}

	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("error scanning row: %w", err)
		}

		var o common.Observation
		for i, name := range columns {
			v := values[i]
			switch {
			case i == timeIndex:
				ts, ok := v.(time.Time)
				if !ok {
					return fmt.Errorf("%w: column %q holds %T, not a timestamp", ErrInvalidValue, name, v)
				}
				o.TimeStamp = ts
			case i == valueIndex:
				o.Value, err = toFloat(v, math.NaN())
			case name == capColumn:
				o.Cap, err = toFloat(v, 0)
			case name == floorColumn:
				o.Floor, err = toFloat(v, 0)
			default:
				if b, ok := v.(bool); ok {
					if o.Conditions == nil {
						o.Conditions = make(map[string]bool)
					}
					o.Conditions[name] = b
					continue
				}
				var f float64
				f, err = toFloat(v, math.NaN())
				if o.Regressors == nil {
					o.Regressors = make(map[string]float64)
				}
				o.Regressors[name] = f
			}
			if err != nil {
				return fmt.Errorf("%w: column %q: %w", ErrInvalidValue, name, err)
			}
		}

		if err := handler(o); err != nil {
			return fmt.Errorf("error processing observation: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error scanning rows: %w", err)
	}
	return nil
}

func toFloat(v any, null float64) (float64, error) {
	switch x := v.(type) {
	case nil:
		return null, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, nil
	case duckdb.Decimal:
		return decimalToFloat(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// decimalToFloat rounds a DuckDB DECIMAL once to the nearest float64.
func decimalToFloat(d duckdb.Decimal) float64 {
	if d.Value == nil {
		return 0
	}
	if d.Value.IsInt64() {
		if v, err := decimal.New(d.Value.Int64(), int(d.Scale)); err == nil {
			if f, ok := v.Float64(); ok {
				return f
			}
		}
	}
	num := new(big.Float).SetPrec(256).SetInt(d.Value)
	den := new(big.Float).SetPrec(256).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil))
	f, _ := num.Quo(num, den).Float64()
	return f
}
