// Package sqlexec runs statements and throwaway plv8 functions against the
// database services are deployed into.
package sqlexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/logger"
)

// temporaryFunctionPrefix names functions created by CallTemporaryFunction.
const temporaryFunctionPrefix = "ppp_"

// DB is the subset of pgxpool.Pool used by Executor.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Executor runs SQL against one database.
type Executor struct {
	db     DB
	logger *slog.Logger
	newID  func() string
}

// New creates an Executor on db.
func New(db DB, log *slog.Logger) *Executor {
	return &Executor{db: db, logger: log, newID: uuid.NewString}
}

// Connect opens a pool on databaseURL. The pool connects lazily, so no call is made here.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, appErrors.NewValidationError("databaseApi.url", "required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, appErrors.NewValidationError("databaseApi.url", "invalid connection string")
	}
	return pool, nil
}

// Exec runs a script of one or more statements.
func (e *Executor) Exec(ctx context.Context, script string) error {
	reqLogger := logger.DeriveRequestLogger(ctx, e.logger)

	logArgs := []any{
		"operation", "Postgres.Exec",
		"bytes", len(script),
	}
	logArgs = append(logArgs, logger.GetDeadlineInfo(ctx)...)
	reqLogger.Debug("calling external service", "context", logger.SliceToMap(logArgs))

	if _, err := e.db.Exec(ctx, script); err != nil {
		reqLogger.Error("sql execution failed", "error", err)
		return classify("failed to execute SQL", err)
	}
	return nil
}

// CallTemporaryFunction creates a plv8 function with body, calls it once and drops it.
// The function's JSON result is returned as is.
func (e *Executor) CallTemporaryFunction(ctx context.Context, body string) (json.RawMessage, error) {
	reqLogger := logger.DeriveRequestLogger(ctx, e.logger)
	name := TemporaryFunctionName(e.newID())
	create, call, drop := temporaryFunctionSQL(name, body)

	logArgs := []any{
		"operation", "Postgres.CallTemporaryFunction",
		"function", name,
	}
	logArgs = append(logArgs, logger.GetDeadlineInfo(ctx)...)
	reqLogger.Debug("calling external service", "context", logger.SliceToMap(logArgs))

	if _, err := e.db.Exec(ctx, create); err != nil {
		return nil, classify("failed to create function", err)
	}
	defer func() {
		// dropping must survive a cancelled caller
		if _, err := e.db.Exec(context.WithoutCancel(ctx), drop); err != nil {
			reqLogger.Warn("failed to drop temporary function", "function", name, "error", err)
		}
	}()

	var raw []byte
	if err := e.db.QueryRow(ctx, call).Scan(&raw); err != nil {
		return nil, classify("function call failed", err)
	}
	if raw == nil {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(raw), nil
}

// TemporaryFunctionName derives a SQL identifier from a UUID.
func TemporaryFunctionName(id string) string {
	return temporaryFunctionPrefix + strings.ReplaceAll(id, "-", "_")
}

func temporaryFunctionSQL(name, body string) (create, call, drop string) {
	tag := "$" + name + "$"
	create = fmt.Sprintf("create or replace function %s() returns json as %s\n%s\n%s language plv8;",
		name, tag, body, tag)
	call = fmt.Sprintf("select %s()::json;", name)
	drop = fmt.Sprintf("drop function if exists %s();", name)
	return create, call, drop
}

// classify keeps the database's own message so script errors reach the operator.
func classify(message string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return appErrors.ErrDatabaseError(fmt.Sprintf("%s: %s", message, pgErr.Message), err)
	}
	return appErrors.ErrDatabaseError(message, err)
}
