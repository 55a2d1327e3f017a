// Package halts is the NYSE/NASDAQ trading halts alert service. Saving one deploys
// a polling job into the operator's database that posts new halts to a chat channel.
package halts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppp/pppctl/internal/assets"
	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/logger"
	"github.com/ppp/pppctl/internal/service"
	"github.com/ppp/pppctl/internal/sqlexec"
	"github.com/ppp/pppctl/internal/sqltmpl"
)

// TablePrefix prefixes the per-service table and functions.
const TablePrefix = "nyse_nsdq_halts_"

// SQLExecutor runs scripts and temporary functions in the service database.
type SQLExecutor interface {
	Exec(ctx context.Context, script string) error
	CallTemporaryFunction(ctx context.Context, body string) (json.RawMessage, error)
}

// FragmentLoader fetches SQL fragments by path.
type FragmentLoader interface {
	Load(ctx context.Context, name string) (string, error)
}

// EmbeddedFragments loads the SQL fragments compiled into the binary.
type EmbeddedFragments struct{}

// Load implements FragmentLoader.
func (EmbeddedFragments) Load(_ context.Context, name string) (string, error) {
	return assets.SQL(name)
}

// Kind deploys halts services. It implements service.Kind[Draft].
type Kind struct {
	exec        SQLExecutor
	fragments   FragmentLoader
	logger      *slog.Logger
	feedURL     string
	telegramURL string
	newID       func() string
}

var _ service.Kind[Draft] = (*Kind)(nil)

// Option configures a Kind.
type Option func(*Kind)

// WithFeedURL overrides the halts feed polled by deployed services.
func WithFeedURL(u string) Option {
	return func(k *Kind) { k.feedURL = u }
}

// WithTelegramAPIURL overrides the chat bot API base URL.
func WithTelegramAPIURL(u string) Option {
	return func(k *Kind) { k.telegramURL = strings.TrimRight(u, "/") }
}

// New creates a halts Kind running SQL through exec.
func New(exec SQLExecutor, fragments FragmentLoader, log *slog.Logger, opts ...Option) *Kind {
	if fragments == nil {
		fragments = EmbeddedFragments{}
	}
	k := &Kind{
		exec:        exec,
		fragments:   fragments,
		logger:      log,
		feedURL:     constants.HaltsFeedURL,
		telegramURL: constants.TelegramAPIURL,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Type implements service.Kind.
func (k *Kind) Type() constants.ServiceType { return constants.ServiceNyseNsdqHalts }

// Name implements service.Kind.
func (k *Kind) Name(d Draft) string { return strings.TrimSpace(d.Name) }

// Validate implements service.Kind.
func (k *Kind) Validate(_ context.Context, d Draft) error { return d.Validate() }

// Fields implements service.Kind.
func (k *Kind) Fields(d Draft) map[string]any { return d.Fields() }

type deployData struct {
	Name           string
	Version        int
	Table          string
	Schedule       string
	Depth          int
	BotToken       string
	Symbols        string
	Formatter      string
	FeedURL        string
	TelegramAPIURL string
}

var (
	deployPath    = path.Join(string(constants.ServiceNyseNsdqHalts), constants.DeploySQLFileName)
	formatterPath = path.Join(string(constants.ServiceNyseNsdqHalts), constants.FormatterFileName)
)

// Deploy implements service.Kind. It resolves the symbols list, renders the shared
// messaging fragment and the deploy script, and runs them as one script.
func (k *Kind) Deploy(ctx context.Context, doc *service.Document, d Draft) error {
	reqLogger := logger.DeriveRequestLogger(ctx, k.logger)

	var sendMessageSQL, deploySQL, formatterSrc string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sendMessageSQL, err = k.fragments.Load(gctx, constants.SendTelegramMessageSQL)
		return err
	})
	g.Go(func() error {
		var err error
		deploySQL, err = k.fragments.Load(gctx, deployPath)
		return err
	})
	g.Go(func() error {
		var err error
		formatterSrc, err = k.fragments.Load(gctx, formatterPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to fetch SQL fragments: %w", err)
	}

	symbols, err := k.CallSymbols(ctx, d)
	if err != nil {
		return err
	}

	formatter, err := renderFormatter(formatterSrc, d)
	if err != nil {
		return err
	}

	data := deployData{
		Name:           k.Name(d),
		Version:        doc.Version,
		Table:          TablePrefix + sqltmpl.Ident(doc.ID),
		Schedule:       CronSchedule(roundUp(d.Interval)),
		Depth:          roundUp(d.Depth),
		BotToken:       d.Bot.Token,
		Symbols:        string(symbols),
		Formatter:      formatter,
		FeedURL:        k.feedURL,
		TelegramAPIURL: k.telegramURL,
	}
	script, err := sqltmpl.Render(string(constants.ServiceNyseNsdqHalts), sendMessageSQL+"\n"+deploySQL, data)
	if err != nil {
		return appErrors.ErrInternalError("failed to render the deploy script", err)
	}

	reqLogger.Debug("deploying service", "context", map[string]any{
		"name":     data.Name,
		"table":    data.Table,
		"schedule": data.Schedule,
		"version":  data.Version,
	})
	return k.exec.Exec(ctx, script)
}

// renderFormatter fills the formatter body with the draft's channel and formatter code.
func renderFormatter(src string, d Draft) (string, error) {
	body, err := sqltmpl.Render(formatterPath, src, map[string]any{
		"Channel":       d.Channel,
		"FormatterCode": d.FormatterCode,
	})
	if err != nil {
		return "", appErrors.ErrInternalError("failed to render the formatter", err)
	}
	return body, nil
}

// CallSymbols runs the draft's symbols code in the database and returns its JSON result.
func (k *Kind) CallSymbols(ctx context.Context, d Draft) (json.RawMessage, error) {
	if err := d.ValidateSymbols(); err != nil {
		return nil, err
	}
	out, err := k.exec.CallTemporaryFunction(ctx, d.SymbolsCode)
	if err != nil {
		return nil, err
	}
	if !json.Valid(out) {
		return nil, appErrors.ErrInternalError("symbols code returned invalid JSON", nil)
	}
	return out, nil
}

// CronSchedule converts a polling interval in seconds to a pg_cron schedule.
// Sub-minute intervals use the seconds syntax; longer ones round up to whole minutes.
func CronSchedule(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	return fmt.Sprintf("*/%d * * * *", (seconds+59)/60)
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// SendTestMessage formats a sample halt with the draft's formatter and posts it
// to the channel from inside the database.
func (k *Kind) SendTestMessage(ctx context.Context, d Draft) error {
	if err := d.ValidateTestMessage(); err != nil {
		return err
	}

	formatterSrc, err := k.fragments.Load(ctx, formatterPath)
	if err != nil {
		return fmt.Errorf("failed to fetch the formatter: %w", err)
	}
	formatter, err := renderFormatter(formatterSrc, d)
	if err != nil {
		return err
	}

	body, err := sqltmpl.Render("test-message", testMessageTemplate, map[string]any{
		"Function":       sqlexec.TemporaryFunctionName(k.newID()),
		"Formatter":      formatter,
		"BotToken":       d.Bot.Token,
		"TelegramAPIURL": k.telegramURL,
	})
	if err != nil {
		return appErrors.ErrInternalError("failed to render the test message function", err)
	}

	out, err := k.exec.CallTemporaryFunction(ctx, body)
	if err != nil {
		return err
	}

	var resp telegramResponse
	if err = json.Unmarshal(out, &resp); err != nil {
		return appErrors.ErrInternalError("unexpected response from the bot API", err)
	}
	if !resp.OK {
		status := resp.ErrorCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		return appErrors.ErrRemoteCallFailed(status, "could not send the test message", resp.Description)
	}
	return nil
}

// testMessageTemplate is the body of a temporary function posting one sample halt.
const testMessageTemplate = `function [% .Function %](halt_date, halt_time, symbol, name, market, reason_code,
  pause_threshold_price, resumption_date, resumption_quote_time, resumption_trade_time) {
[% .Formatter %]
}

const response = plv8.execute(
  "select content from http_post('[% .TelegramAPIURL %]/bot' || $1 || '/sendMessage', $2, 'application/x-www-form-urlencoded')",
  [[% json .BotToken %], [% .Function %]('02/10/2022', '15:37:48', 'ASTR', 'Astra Space Inc Cl A Cmn Stk',
    'NASDAQ', 'LUDP', '', '02/10/2022', '15:37:48', '15:42:48')]
)[0];

return JSON.parse(response.content);`
