package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppp/pppctl/internal/config"
	"github.com/ppp/pppctl/internal/constants"
	"github.com/ppp/pppctl/internal/operation"
	"github.com/ppp/pppctl/internal/output"
	"github.com/ppp/pppctl/internal/service"
	"github.com/ppp/pppctl/internal/service/halts"
	"github.com/ppp/pppctl/internal/sqlexec"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Service management commands",
}

var haltsCmd = &cobra.Command{
	Use:   string(constants.ServiceNyseNsdqHalts),
	Short: "NYSE/NASDAQ trading halts alerts",
}

var (
	draftFile   string
	listType    string
	symbolsJSON bool
)

var haltsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save and deploy a halts service",
	Long: `Validate the service draft, store it with a new version, deploy it into the database,
then mark it active or stopped. A failed deploy leaves the service in the failed state.`,
	Example: fmt.Sprintf("  - %s services %s save --file halts.yaml", constants.CLIName, constants.ServiceNyseNsdqHalts),
	Run:     runHaltsSave,
}

var haltsTestMessageCmd = &cobra.Command{
	Use:   "test-message",
	Short: "Send a sample halt to the configured channel",
	Example: fmt.Sprintf("  - %s services %s test-message --file halts.yaml",
		constants.CLIName, constants.ServiceNyseNsdqHalts),
	Run: runHaltsTestMessage,
}

var haltsSymbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Run the symbols code and print its result",
	Example: fmt.Sprintf("  - %s services %s symbols --file halts.yaml",
		constants.CLIName, constants.ServiceNyseNsdqHalts),
	Run: runHaltsSymbols,
}

var servicesListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List saved services",
	Example: fmt.Sprintf("  - %s services list", constants.CLIName),
	Run:     runServicesList,
}

func init() {
	for _, c := range []*cobra.Command{haltsSaveCmd, haltsTestMessageCmd, haltsSymbolsCmd} {
		c.Flags().StringVarP(&draftFile, "file", "f", "", "YAML file with the service draft")
		_ = c.MarkFlagRequired("file")
		haltsCmd.AddCommand(c)
	}
	haltsSymbolsCmd.Flags().BoolVar(&symbolsJSON, "json", false, "Print the raw JSON result")
	servicesListCmd.Flags().StringVar(&listType, "type", string(constants.ServiceNyseNsdqHalts), "Service type")

	servicesCmd.AddCommand(haltsCmd)
	servicesCmd.AddCommand(servicesListCmd)
	rootCmd.AddCommand(servicesCmd)
}

// loadHaltsDraft reads the draft file; the database URL falls back to the configured one.
func loadHaltsDraft(cfg *config.Config) (halts.Draft, error) {
	draft, err := halts.LoadDraft(draftFile)
	if err != nil {
		return draft, err
	}
	if draft.DatabaseAPI.URL == "" {
		draft.DatabaseAPI.URL = cfg.DatabaseURL
	}
	return draft, nil
}

// haltsOptions points deployed halts services at the configured endpoints.
func haltsOptions(cfg *config.Config) []halts.Option {
	var opts []halts.Option
	if cfg.TelegramAPIURL != "" {
		opts = append(opts, halts.WithTelegramAPIURL(cfg.TelegramAPIURL))
	}
	if cfg.HaltsFeedURL != "" {
		opts = append(opts, halts.WithFeedURL(cfg.HaltsFeedURL))
	}
	return opts
}

// withHaltsKind checks the draft with precheck, then connects to its database for fn.
func withHaltsKind(
	ctx context.Context,
	cfg *config.Config,
	draft halts.Draft,
	precheck func() error,
	log *slog.Logger,
	fn func(kind *halts.Kind) error,
) error {
	if err := precheck(); err != nil {
		return err
	}
	pool, err := sqlexec.Connect(ctx, draft.DatabaseAPI.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(halts.New(sqlexec.New(pool, log), halts.EmbeddedFragments{}, log, haltsOptions(cfg)...))
}

func runHaltsSave(cmd *cobra.Command, _ []string) {
	executeWithConfig(cmd, func(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
		draft, err := loadHaltsDraft(cfg)
		if err != nil {
			return err
		}
		repo, err := openServiceRepository(ctx, cfg, log)
		if err != nil {
			return err
		}
		return withHaltsKind(ctx, cfg, draft, draft.Validate, log, func(kind *halts.Kind) error {
			pipeline := service.NewPipeline[halts.Draft](kind, repo, log)
			return NewHaltsService(pipeline, kind, repo, NewOutputWrapper()).Save(ctx, draft)
		})
	})
}

func runHaltsTestMessage(cmd *cobra.Command, _ []string) {
	executeWithConfig(cmd, func(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
		draft, err := loadHaltsDraft(cfg)
		if err != nil {
			return err
		}
		return withHaltsKind(ctx, cfg, draft, draft.ValidateTestMessage, log, func(kind *halts.Kind) error {
			return NewHaltsService(nil, kind, nil, NewOutputWrapper()).TestMessage(ctx, draft)
		})
	})
}

func runHaltsSymbols(cmd *cobra.Command, _ []string) {
	executeWithConfig(cmd, func(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
		draft, err := loadHaltsDraft(cfg)
		if err != nil {
			return err
		}
		return withHaltsKind(ctx, cfg, draft, draft.ValidateSymbols, log, func(kind *halts.Kind) error {
			return NewHaltsService(nil, kind, nil, NewOutputWrapper()).Symbols(ctx, draft, symbolsJSON)
		})
	})
}

func runServicesList(cmd *cobra.Command, _ []string) {
	executeWithConfig(cmd, func(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
		repo, err := openServiceRepository(ctx, cfg, log)
		if err != nil {
			return err
		}
		return NewHaltsService(nil, nil, repo, NewOutputWrapper()).List(ctx, constants.ServiceType(listType))
	})
}

// haltsSaver runs the save pipeline for halts drafts.
type haltsSaver interface {
	Save(ctx context.Context, draft halts.Draft, sink operation.Sink) (*service.Document, error)
}

// haltsRunner runs draft code in the service database.
type haltsRunner interface {
	SendTestMessage(ctx context.Context, draft halts.Draft) error
	CallSymbols(ctx context.Context, draft halts.Draft) (json.RawMessage, error)
}

// serviceLister lists stored service documents.
type serviceLister interface {
	List(ctx context.Context, serviceType constants.ServiceType) ([]*service.Document, error)
}

// HaltsService handles halts service operations
type HaltsService struct {
	saver  haltsSaver
	runner haltsRunner
	lister serviceLister
	output OutputInterface
}

// NewHaltsService creates a new HaltsService with the provided dependencies
func NewHaltsService(saver haltsSaver, runner haltsRunner, lister serviceLister, outputter OutputInterface) *HaltsService {
	return &HaltsService{
		saver:  saver,
		runner: runner,
		lister: lister,
		output: outputter,
	}
}

// Save saves and deploys draft, then prints the stored document.
func (s *HaltsService) Save(ctx context.Context, draft halts.Draft) error {
	doc, err := s.saver.Save(ctx, draft, s.output.OperationSink("Saving "+draft.Name))
	if doc != nil {
		s.output.Blank()
		s.printDocument(doc)
	}
	if err != nil {
		return reportedError{err}
	}
	return nil
}

// TestMessage posts a sample halt to the draft's channel.
func (s *HaltsService) TestMessage(ctx context.Context, draft halts.Draft) error {
	if err := s.runner.SendTestMessage(ctx, draft); err != nil {
		return fmt.Errorf("failed to send the test message: %w", err)
	}
	s.output.Successf("Test message sent to channel %s", s.output.Bold(strconv.FormatInt(draft.Channel, 10)))
	return nil
}

// Symbols runs the draft's symbols code and prints the symbols it returns.
func (s *HaltsService) Symbols(ctx context.Context, draft halts.Draft, raw bool) error {
	out, err := s.runner.CallSymbols(ctx, draft)
	if err != nil {
		return fmt.Errorf("failed to run the symbols code: %w", err)
	}
	if raw {
		s.output.Println(string(out))
		return nil
	}

	var symbols []any
	if json.Unmarshal(out, &symbols) != nil {
		s.output.Println(string(out))
		return nil
	}
	rows := make([][]string, 0, len(symbols))
	for _, sym := range symbols {
		rows = append(rows, []string{fmt.Sprint(sym)})
	}
	s.output.Table([]string{"Symbol"}, rows)
	s.output.Infof("%d symbols", len(symbols))
	return nil
}

// List prints every stored service of serviceType.
func (s *HaltsService) List(ctx context.Context, serviceType constants.ServiceType) error {
	docs, err := s.lister.List(ctx, serviceType)
	if err != nil {
		return fmt.Errorf("failed to list services: %w", err)
	}
	if len(docs) == 0 {
		s.output.Infof("No %s services saved yet", serviceType)
		return nil
	}

	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, []string{
			doc.Name,
			doc.ID,
			output.StatusBadge(string(doc.State)),
			strconv.Itoa(doc.Version),
			doc.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	s.output.Table([]string{"Name", "ID", "State", "Version", "Updated"}, rows)
	return nil
}

func (s *HaltsService) printDocument(doc *service.Document) {
	s.output.KeyValue("ID", doc.ID)
	s.output.KeyValue("Name", doc.Name)
	s.output.KeyValue("State", string(doc.State))
	s.output.KeyValue("Version", strconv.Itoa(doc.Version))
}
