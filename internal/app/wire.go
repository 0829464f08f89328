package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dualdex/internal/cache/redis"
	"github.com/alanyoungcy/dualdex/internal/chain/evm"
	"github.com/alanyoungcy/dualdex/internal/config"
	"github.com/alanyoungcy/dualdex/internal/confirm"
	"github.com/alanyoungcy/dualdex/internal/domain"
	"github.com/alanyoungcy/dualdex/internal/exchange"
	"github.com/alanyoungcy/dualdex/internal/gasprice"
	"github.com/alanyoungcy/dualdex/internal/indexer"
	"github.com/alanyoungcy/dualdex/internal/notify"
	"github.com/alanyoungcy/dualdex/internal/store/postgres"
	"github.com/alanyoungcy/dualdex/internal/token"
	"github.com/alanyoungcy/dualdex/internal/wallet"
)

// Dependencies bundles everything the commands need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Optional persistence; nil when the backing service is disabled.
	Journal  domain.TxJournal
	Audit    domain.AuditStore
	TxStream *redis.TxStream

	Index    *indexer.Client
	Gas      *gasprice.Oracle
	Notifier *notify.Notifier

	// Trader is the wallet address, zero when running read-only.
	Trader  common.Address
	Clients map[domain.ChainID]*exchange.Client
}

// Client returns the trading facade for chain.
func (d *Dependencies) Client(chain domain.ChainID) (*exchange.Client, error) {
	c, ok := d.Clients[chain]
	if !ok {
		return nil, fmt.Errorf("app: %w: %q is not configured", domain.ErrUnknownChain, chain)
	}
	return c, nil
}

// WireOptions carries process-level hooks that do not belong in the config
// file.
type WireOptions struct {
	Logger   *slog.Logger
	Progress confirm.Progress
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, opts WireOptions) (*Dependencies, func(), error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Clients: make(map[domain.ChainID]*exchange.Client)}
	var observers []domain.TxObserver

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		journal := postgres.NewTxJournal(pgClient.Pool())
		deps.Journal = journal
		deps.Audit = postgres.NewAuditStore(pgClient.Pool())
		observers = append(observers, journal)
	}

	// --- Redis ---
	var (
		sharedTokens domain.TokenCache
		locker       evm.Locker
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		sharedTokens = redis.NewTokenCache(redisClient)
		locker = redis.NewLockManager(redisClient, cfg.Redis.LockTTL.Duration)
		deps.TxStream = redis.NewTxStream(redisClient)
		observers = append(observers, deps.TxStream)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
		observers = append(observers, deps.Notifier)
	}

	// --- Indexer and gas pricing ---
	deps.Index = indexer.NewClient(cfg.Indexer.BaseURL, cfg.Indexer.Timeout.Duration, logger).
		WithOrigin(cfg.Indexer.Origin)

	gasCfg, err := gasConfig(cfg)
	if err != nil {
		return fail(fmt.Errorf("wire: gas: %w", err))
	}
	deps.Gas = gasprice.NewOracle(gasCfg, logger)

	// --- Wallet ---
	key, err := wallet.Load(wallet.Source{
		PrivateKey:       cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		Password:         cfg.Wallet.KeyPassword,
	})
	if err != nil && !errors.Is(err, domain.ErrNoWallet) {
		return fail(fmt.Errorf("wire: wallet: %w", err))
	}

	// --- Per-chain facades ---
	ids, err := cfg.ChainIDs()
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	mem := token.NewMemoryCache()
	for _, id := range ids {
		cc, _ := cfg.Chain(id)

		tracker := confirm.NewTracker(deps.Index, confirm.Config{
			PollInterval:       cfg.Indexer.PollInterval.Duration,
			GasExhaustionLimit: cc.GasExhaustionLimit(),
			Progress:           opts.Progress,
		}, logger)

		exDeps := exchange.Deps{
			Index:   deps.Index,
			Gas:     deps.Gas,
			Tracker: tracker,
		}

		if cc.RPCURL != "" {
			var signer evm.TxSigner
			if key != nil {
				s, err := wallet.NewSigner(key, big.NewInt(cc.ChainID))
				if err != nil {
					return fail(fmt.Errorf("wire: %s signer: %w", id, err))
				}
				signer = s
				deps.Trader = s.Address()
			}
			node, err := evm.Dial(ctx, id, cc.RPCURL, signer, logger)
			if err != nil {
				return fail(fmt.Errorf("wire: %s node: %w", id, err))
			}
			closers = append(closers, node.Close)
			if locker != nil {
				node.WithLocker(locker)
			}
			deps.Gas.WithNode(id, node)
			exDeps.Chain = node
			exDeps.Tokens = token.NewClassifier(id, node, mem, sharedTokens, logger)
		} else {
			logger.InfoContext(ctx, "chain has no rpc_url, running without a node",
				slog.String("chain", id.String()),
			)
		}

		client := exchange.NewClient(id, exDeps, cc.GasLimit, logger).WithObservers(observers...)
		if deps.Audit != nil {
			client.WithAudit(deps.Audit)
		}
		deps.Clients[id] = client
	}

	return deps, cleanup, nil
}

func gasConfig(cfg *config.Config) (gasprice.Config, error) {
	override, err := cfg.GasOverride()
	if err != nil {
		return gasprice.Config{}, err
	}
	out := gasprice.Config{
		Override:   override,
		Fixed:      make(map[domain.ChainID]*big.Int),
		StationURL: cfg.Gas.StationURL,
		Timeout:    cfg.Gas.Timeout.Duration,
	}
	for _, name := range cfg.Gas.StationChains {
		id, err := domain.ParseChain(name)
		if err != nil {
			return gasprice.Config{}, err
		}
		out.StationChains = append(out.StationChains, id)
	}
	ids, err := cfg.ChainIDs()
	if err != nil {
		return gasprice.Config{}, err
	}
	for _, id := range ids {
		cc, _ := cfg.Chain(id)
		fixed, err := cc.FixedGasPrice()
		if err != nil {
			return gasprice.Config{}, fmt.Errorf("%s: %w", id, err)
		}
		if fixed != nil {
			out.Fixed[id] = fixed
		}
	}
	return out, nil
}
