package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/internal/config"
	"github.com/MarkoPoloResearchLab/seatledger/internal/console"
	"github.com/MarkoPoloResearchLab/seatledger/internal/logging"
	"github.com/MarkoPoloResearchLab/seatledger/internal/payment"
	"github.com/MarkoPoloResearchLab/seatledger/internal/store/filestore"
	"github.com/MarkoPoloResearchLab/seatledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	flagDatabaseURL            = "database-url"
	flagReferenceFloor         = "reference-floor"
	flagLogLevel               = "log-level"
	flagLogOutput              = "log-output"
	flagPaymentApprovalPercent = "payment-approval-percent"
	flagPaymentSeed            = "payment-seed"
	flagMaxGroups              = "max-groups"
	flagMaxRidersPerGroup      = "max-riders"
	flagPasswordCost           = "password-cost"
	flagEnvFile                = "env-file"
	flagNoColor                = "no-color"

	envPrefix = "SEATLEDGER"

	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
	driverFile     = "file"

	defaultSQLiteFile = "seatledger.db"
)

type configBinding struct {
	key  string
	flag string
}

var configBindings = []configBinding{
	{key: "database_url", flag: flagDatabaseURL},
	{key: "reference_floor", flag: flagReferenceFloor},
	{key: "log_level", flag: flagLogLevel},
	{key: "log_output", flag: flagLogOutput},
	{key: "payment_approval_percent", flag: flagPaymentApprovalPercent},
	{key: "payment_seed", flag: flagPaymentSeed},
	{key: "max_groups", flag: flagMaxGroups},
	{key: "max_riders_per_group", flag: flagMaxRidersPerGroup},
	{key: "password_cost", flag: flagPasswordCost},
	{key: "no_color", flag: flagNoColor},
}

type runtimeConfig struct {
	config.Config
	NoColor bool
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seatledger: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "seatledger",
		Short:         "Train seat reservation ledger console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runConsole(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagDatabaseURL, config.DefaultDatabaseURL, "Storage URL: sqlite://path, postgres://dsn or file://directory")
	flags.Int64(flagReferenceFloor, config.DefaultReferenceFloor, "Lowest accepted booking reference counter")
	flags.String(flagLogLevel, config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	flags.String(flagLogOutput, config.DefaultLogOutput, "Log destination path, or stderr")
	flags.Int(flagPaymentApprovalPercent, config.DefaultPaymentApprovalPercent, "Share of simulated payments approved (0-100)")
	flags.Int64(flagPaymentSeed, 0, "Seed for the simulated payment gateway (0 uses the clock)")
	flags.Int(flagMaxGroups, config.DefaultMaxGroups, "Maximum groups per booking session")
	flags.Int(flagMaxRidersPerGroup, config.DefaultMaxRidersPerGroup, "Maximum riders per group")
	flags.Int(flagPasswordCost, 0, "bcrypt cost for stored passwords (0 uses the library default)")
	flags.String(flagEnvFile, config.DefaultEnvFile, "Optional dotenv file loaded before reading the environment")
	flags.Bool(flagNoColor, false, "Disable colored console output")

	cmd.AddCommand(newHistoryCommand(cfg), newBookingsCommand(cfg))
	return cmd
}

func newHistoryCommand(cfg *runtimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "history <reference>",
		Short: "Print the transaction history of a booking reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reference, err := ledger.ParseReference(args[0])
			if err != nil {
				return err
			}
			return withService(cmd.Context(), cfg, func(ctx context.Context, service *ledger.Service, _ *zap.Logger) error {
				events, err := service.History(ctx, reference)
				if err != nil {
					return err
				}
				output := cmd.OutOrStdout()
				if len(events) == 0 {
					fmt.Fprintf(output, "no transaction records for %s\n", reference)
					return nil
				}
				for _, event := range events {
					fmt.Fprintf(output, "%s|%s|%s|%s\n", event.RecordedAt.UTC().Format(time.RFC3339), event.Reference, event.Kind, event.Status)
				}
				return nil
			})
		},
	}
}

func newBookingsCommand(cfg *runtimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "bookings",
		Short: "Print every booking with its status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), cfg, func(ctx context.Context, service *ledger.Service, _ *zap.Logger) error {
				output := cmd.OutOrStdout()
				for _, booking := range service.Bookings() {
					fmt.Fprintf(output, "%s\t%s\t%s\t%d\t%s\t%s\n",
						booking.Reference(), booking.ServiceID(), booking.Date(), booking.Seats(), booking.Fare(), booking.Status())
				}
				return nil
			})
		},
	}
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	flags := cmd.Root().PersistentFlags()
	envFile, err := flags.GetString(flagEnvFile)
	if err != nil {
		return err
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	settings := viper.New()
	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	for _, binding := range configBindings {
		if err := settings.BindEnv(binding.key); err != nil {
			return err
		}
		if err := settings.BindPFlag(binding.key, flags.Lookup(binding.flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = settings.GetString("database_url")
	cfg.ReferenceFloor = settings.GetInt64("reference_floor")
	cfg.LogLevel = settings.GetString("log_level")
	cfg.LogOutput = settings.GetString("log_output")
	cfg.PaymentApprovalPercent = settings.GetInt("payment_approval_percent")
	cfg.PaymentSeed = settings.GetInt64("payment_seed")
	cfg.MaxGroups = settings.GetInt("max_groups")
	cfg.MaxRidersPerGroup = settings.GetInt("max_riders_per_group")
	cfg.PasswordCost = settings.GetInt("password_cost")
	cfg.NoColor = settings.GetBool("no_color")
	return cfg.Validate()
}

func runConsole(ctx context.Context, cfg *runtimeConfig, input io.Reader, output io.Writer) error {
	return withService(ctx, cfg, func(ctx context.Context, service *ledger.Service, logger *zap.Logger) error {
		options := []console.Option{
			console.WithLimits(console.Limits{MaxGroups: cfg.MaxGroups, MaxRidersPerGroup: cfg.MaxRidersPerGroup}),
			console.WithLogger(logger),
		}
		if cfg.NoColor {
			options = append(options, console.WithPlainOutput())
		}
		session, err := console.NewSession(service, input, output, options...)
		if err != nil {
			return err
		}
		runErr := session.Run(ctx)
		if flushErr := service.Flush(context.WithoutCancel(ctx)); flushErr != nil {
			logger.Error("final snapshot flush failed", zap.Error(flushErr))
			if runErr == nil {
				runErr = flushErr
			}
		}
		return runErr
	})
}

// withService builds the ledger over the configured store and hands it to fn.
func withService(ctx context.Context, cfg *runtimeConfig, fn func(ctx context.Context, service *ledger.Service, logger *zap.Logger) error) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogOutput)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("storage open: %w", err)
	}
	defer func() {
		if closeErr := cleanup(); closeErr != nil {
			logger.Warn("storage close failed", zap.Error(closeErr))
		}
	}()

	gateway, err := payment.NewSimulatedGateway(cfg.PaymentApprovalPercent, cfg.PaymentSeed, logger)
	if err != nil {
		return err
	}
	clock := func() int64 { return time.Now().UTC().Unix() }
	service, err := ledger.NewService(ctx, store, gateway, clock,
		ledger.WithReferenceFloor(cfg.ReferenceFloor),
		ledger.WithPasswordCost(cfg.PasswordCost),
		ledger.WithOperationLogger(logging.NewOperationLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("ledger service init: %w", err)
	}
	logger.Info("ledger ready",
		zap.String("database_url", redactURL(cfg.DatabaseURL)),
		zap.Int("services", len(service.Services())),
		zap.Int64("last_reference", service.LastReference()),
	)
	return fn(ctx, service, logger)
}

func openStore(ctx context.Context, dsn string) (ledger.Store, func() error, error) {
	driver, path, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}
	if driver == driverFile {
		store, err := filestore.New(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	}
	db, cleanup, err := openDatabase(ctx, dsn, driver, path)
	if err != nil {
		return nil, nil, err
	}
	store := gormstore.New(db)
	if err := store.Migrate(ctx); err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}

func openDatabase(ctx context.Context, dsn string, driver string, sqlitePath string) (*gorm.DB, func() error, error) {
	var (
		db  *gorm.DB
		err error
	)
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	switch driver {
	case driverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	case driverSQLite:
		db, err = gorm.Open(sqlite.Open(sqlitePath), cfg)
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return driverPostgres, "", nil
	}
	if strings.HasPrefix(dsn, "file://") {
		directory := strings.TrimPrefix(dsn, "file://")
		if directory == "" {
			directory = "."
		}
		return driverFile, filepath.Clean(directory), nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Host + u.Path
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return driverSQLite, sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return driverSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	cleaned := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleaned), 0o755); err != nil {
		return "", fmt.Errorf("create sqlite directory: %w", err)
	}
	return cleaned, nil
}

func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	return parsed.Redacted()
}
