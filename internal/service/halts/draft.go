package halts

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
)

// Draft field names, used in validation errors and as document field keys.
const (
	FieldName          = "name"
	FieldDatabaseAPI   = "databaseApiId"
	FieldDatabaseURL   = "databaseApi.url"
	FieldInterval      = "interval"
	FieldDepth         = "depth"
	FieldSymbolsCode   = "symbolsCode"
	FieldBot           = "botId"
	FieldBotToken      = "bot.token"
	FieldChannel       = "channel"
	FieldFormatterCode = "formatterCode"
)

// DatabaseAPI references the database the service is deployed into.
type DatabaseAPI struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// Bot references the chat bot that posts halt messages.
type Bot struct {
	ID    string `yaml:"id"`
	Token string `yaml:"token"`
}

// Draft is the operator-declared configuration of one halts service.
type Draft struct {
	Name          string      `yaml:"name"`
	DatabaseAPI   DatabaseAPI `yaml:"databaseApi"`
	Interval      float64     `yaml:"interval"`
	Depth         float64     `yaml:"depth"`
	SymbolsCode   string      `yaml:"symbolsCode"`
	Bot           Bot         `yaml:"bot"`
	Channel       int64       `yaml:"channel"`
	FormatterCode string      `yaml:"formatterCode"`
}

// LoadDraft reads a draft from a YAML file.
func LoadDraft(path string) (Draft, error) {
	var d Draft
	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("failed to read draft %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("failed to parse draft %s: %w", path, err)
	}
	return d, nil
}

// Validate checks every field of a draft that is persisted or deployed.
func (d Draft) Validate() error {
	verr := &appErrors.ValidationError{}
	requireText(verr, FieldName, d.Name)
	d.validateDatabase(verr)

	if !finite(d.Interval) || d.Interval <= 0 || d.Interval > constants.HaltsIntervalMax {
		verr.Add(FieldInterval, rangeMessage(constants.HaltsIntervalMin, constants.HaltsIntervalMax))
	}
	if !finite(d.Depth) || d.Depth < constants.HaltsDepthMin || d.Depth > constants.HaltsDepthMax {
		verr.Add(FieldDepth, rangeMessage(constants.HaltsDepthMin, constants.HaltsDepthMax))
	}

	requireText(verr, FieldSymbolsCode, d.SymbolsCode)
	d.validateMessaging(verr)
	return verr.OrNil()
}

// ValidateSymbols checks the fields needed to run the symbols code.
func (d Draft) ValidateSymbols() error {
	verr := &appErrors.ValidationError{}
	d.validateDatabase(verr)
	requireText(verr, FieldSymbolsCode, d.SymbolsCode)
	return verr.OrNil()
}

// ValidateTestMessage checks the fields needed to send a test message.
func (d Draft) ValidateTestMessage() error {
	verr := &appErrors.ValidationError{}
	d.validateDatabase(verr)
	d.validateMessaging(verr)
	return verr.OrNil()
}

func (d Draft) validateDatabase(verr *appErrors.ValidationError) {
	requireText(verr, FieldDatabaseAPI, d.DatabaseAPI.ID)
	requireText(verr, FieldDatabaseURL, d.DatabaseAPI.URL)
}

func (d Draft) validateMessaging(verr *appErrors.ValidationError) {
	requireText(verr, FieldBot, d.Bot.ID)
	requireText(verr, FieldBotToken, d.Bot.Token)
	if d.Channel == 0 {
		verr.Add(FieldChannel, "required")
	}
	requireText(verr, FieldFormatterCode, d.FormatterCode)
}

func requireText(verr *appErrors.ValidationError, field, value string) {
	if strings.TrimSpace(value) == "" {
		verr.Add(field, "required")
	}
}

// finite rejects NaN and the infinities, which YAML decodes from .nan and .inf.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func rangeMessage(lo, hi int) string {
	return fmt.Sprintf("enter a value between %d and %d", lo, hi)
}

// Fields are the persisted document fields. Numeric bounds are stored as ceil(abs(value)).
func (d Draft) Fields() map[string]any {
	return map[string]any{
		FieldName:          strings.TrimSpace(d.Name),
		FieldDatabaseAPI:   d.DatabaseAPI.ID,
		FieldInterval:      roundUp(d.Interval),
		FieldDepth:         roundUp(d.Depth),
		FieldSymbolsCode:   d.SymbolsCode,
		FieldBot:           d.Bot.ID,
		FieldChannel:       d.Channel,
		FieldFormatterCode: d.FormatterCode,
	}
}

func roundUp(v float64) int {
	return int(math.Ceil(math.Abs(v)))
}
