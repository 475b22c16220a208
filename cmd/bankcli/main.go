package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/gobank/internal/adapter/idgen"
	"github.com/iho/gobank/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/gobank/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/gobank/internal/adapter/repository/redis"
	"github.com/iho/gobank/internal/domain"
	"github.com/iho/gobank/internal/infrastructure/auth"
	"github.com/iho/gobank/internal/infrastructure/config"
	"github.com/iho/gobank/internal/infrastructure/logger"
	"github.com/iho/gobank/internal/infrastructure/metrics"
	"github.com/iho/gobank/internal/infrastructure/postgres"
	"github.com/iho/gobank/internal/infrastructure/redis"
	"github.com/iho/gobank/internal/usecase"
)

var idempotencyKey string

func main() {
	rootCmd := &cobra.Command{
		Use:           "bankcli",
		Short:         "gobank command line interface",
		Long:          `Manage accounts and move money through the gobank transfer engine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		registerCmd(),
		loginCmd(),
		depositCmd(),
		withdrawCmd(),
		transferCmd(),
		historyCmd(),
		migrateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles the wired engine with everything it needs shut down.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	engine *usecase.TransferEngine

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp loads configuration and wires the engine against the configured
// storage backend.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &app{
		cfg: cfg,
		log: logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}),
	}

	engineCfg := usecase.Config{
		Hasher:         auth.NewBcryptHasher(cfg.BcryptCost),
		IDGen:          idgen.NewULIDGenerator(),
		Metrics:        metrics.New(),
		LockTimeout:    cfg.LockTimeout,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}

	txnIDs := idgen.NewMonotonicGenerator()

	switch cfg.Store {
	case "memory":
		engineCfg.Accounts = memory.NewAccountStore()
		engineCfg.Ledger = memory.NewLedger(txnIDs)
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns, cfg.DatabaseTimeout)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.log.Debug().Msg("connected to postgres")

		engineCfg.Accounts = postgresRepo.NewAccountStore(pool)
		engineCfg.Ledger = postgresRepo.NewLedger(pool, txnIDs)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.JWTSecret != "" {
		engineCfg.Tokens = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.log.Debug().Msg("connected to redis")

		engineCfg.Idempotency = redisRepo.NewIdempotencyStore(client)
	}

	a.engine = usecase.NewTransferEngine(engineCfg)

	return a, nil
}

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <username> <password> [initial-balance]",
		Short: "Create an account",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var balance domain.Amount
			if len(args) == 3 {
				var err error
				balance, err = domain.ParseAmount(args[2])
				if err != nil {
					return err
				}
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			account, err := a.engine.Register(cmd.Context(), usecase.RegisterInput{
				Username:       args[0],
				Password:       args[1],
				InitialBalance: balance,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Account created: %s (balance %s)\n", account.Username, account.Balance)

			return nil
		},
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Verify a credential and print a session token if configured",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.Login(cmd.Context(), usecase.LoginInput{
				Username: args[0],
				Password: args[1],
			})
			if err != nil {
				return err
			}

			fmt.Printf("Authenticated as %s (balance %s)\n", result.Account.Username, result.Account.Balance)
			if result.Token != "" {
				fmt.Println(result.Token)
			}

			return nil
		},
	}
}

func depositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit <username> <amount>",
		Short: "Credit an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := domain.ParseAmount(args[1])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			txn, err := a.engine.Deposit(cmd.Context(), usecase.DepositInput{
				Username:       args[0],
				Amount:         amount,
				IdempotencyKey: idempotencyKey,
			})
			if err != nil {
				return err
			}

			printTransaction(txn)

			return nil
		},
	}
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Deduplicate retries of the same operation")

	return cmd
}

func withdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw <username> <amount>",
		Short: "Debit an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := domain.ParseAmount(args[1])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			txn, err := a.engine.Withdraw(cmd.Context(), usecase.DepositInput{
				Username:       args[0],
				Amount:         amount,
				IdempotencyKey: idempotencyKey,
			})
			if err != nil {
				return err
			}

			printTransaction(txn)

			return nil
		},
	}
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Deduplicate retries of the same operation")

	return cmd
}

func transferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer <sender> <recipient> <amount>",
		Short: "Move money between two accounts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := domain.ParseAmount(args[2])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.Transfer(cmd.Context(), usecase.TransferInput{
				Sender:         args[0],
				Recipient:      args[1],
				Amount:         amount,
				IdempotencyKey: idempotencyKey,
			})
			if err != nil {
				return err
			}

			printTransaction(result.Out)
			printTransaction(result.In)

			return nil
		},
	}
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Deduplicate retries of the same operation")

	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <username>",
		Short: "Print an account's ledger records, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.engine.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			count := 0
			for txn, err := range records {
				if err != nil {
					return err
				}
				printTransaction(txn)
				count++
			}

			if count == 0 {
				fmt.Println("No transactions.")
			}

			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}

				return postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}

				return postgres.RunMigrationsDown(cfg.DatabaseURL, cfg.MigrationsPath)
			},
		},
	)

	return cmd
}

func printTransaction(txn *domain.Transaction) {
	fmt.Printf("%s  %-12s %10s  %s\n",
		txn.Timestamp.Format("2006-01-02 15:04:05"),
		txn.Type,
		txn.Amount,
		txn.ID,
	)
}
