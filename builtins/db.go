package builtins

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/atlas-lang/atlas/errz"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/security"
	"github.com/atlas-lang/atlas/token"
)

// DBQuery runs a SQL query against a Postgres database and returns the
// result rows as an array of arrays. Requires a network grant for the
// database host.
//
// dbQuery(connString, query) -> [[col, ...], ...]
func DBQuery(ctx context.Context, args ...object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, arityError("dbQuery", 2, len(args))
	}
	connString, ok := args[0].(*object.String)
	if !ok {
		return nil, argError("dbQuery", "string", args[0])
	}
	query, ok := args[1].(*object.String)
	if !ok {
		return nil, argError("dbQuery", "string", args[1])
	}

	cfg, err := pgx.ParseConfig(connString.Value())
	if err != nil {
		return nil, errz.NewRuntimeError(errz.InvalidArgument, token.Span{},
			"dbQuery: invalid connection string: %v", err)
	}
	sec := security.FromContext(ctx)
	if err := sec.CheckNetwork(cfg.Host, token.Span{}); err != nil {
		return nil, err
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, errz.NewRuntimeError(errz.IoError, token.Span{},
			"dbQuery: connect: %v", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, query.Value())
	if err != nil {
		return nil, errz.NewRuntimeError(errz.IoError, token.Span{},
			"dbQuery: %v", err)
	}
	defer rows.Close()

	var result []object.Value
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errz.NewRuntimeError(errz.IoError, token.Span{},
				"dbQuery: %v", err)
		}
		row := make([]object.Value, len(values))
		for i, v := range values {
			row[i] = fromSQL(v)
		}
		result = append(result, object.NewArray(row))
	}
	if err := rows.Err(); err != nil {
		return nil, errz.NewRuntimeError(errz.IoError, token.Span{},
			"dbQuery: %v", err)
	}
	return object.NewArray(result), nil
}

// fromSQL converts a driver value to an Atlas value. Types outside the
// value model are rendered through their string form.
func fromSQL(v any) object.Value {
	switch v := v.(type) {
	case nil:
		return object.Null
	case bool:
		return object.NewBool(v)
	case string:
		return object.NewString(v)
	case int64:
		return object.NewNumber(float64(v))
	case int32:
		return object.NewNumber(float64(v))
	case int16:
		return object.NewNumber(float64(v))
	case float64:
		return object.NewNumber(v)
	case float32:
		return object.NewNumber(float64(v))
	case []byte:
		return object.NewString(string(v))
	case time.Time:
		return object.NewString(v.Format(time.RFC3339))
	default:
		return object.NewString(fmt.Sprint(v))
	}
}
