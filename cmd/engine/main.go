// Command engine runs the private core process (spec §2): pricing strategy
// dispatch, the locked-deal repository, and the chain watcher, exposed only
// over the internal HTTP+JSON API (internal/enginerpc). It never terminates
// public client traffic; that is cmd/edge's job.
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"negotiation-engine/internal/catalog"
	"negotiation-engine/internal/chainwatch"
	"negotiation-engine/internal/config"
	"negotiation-engine/internal/deal"
	"negotiation-engine/internal/engine"
	"negotiation-engine/internal/enginerpc"
	"negotiation-engine/internal/obslog"
	"negotiation-engine/internal/priceconv"
	"negotiation-engine/internal/strategy"
	"negotiation-engine/internal/walletkeys"
)

func main() {
	cfg, err := config.Load("negotiation-engine", []string{".", "/etc/negotiation-engine"}, ".env")
	if err != nil {
		log.Fatalf("engine: load config: %v", err)
	}

	logger, err := obslog.NewEngineLogger(cfg.LogLevel != "debug")
	if err != nil {
		log.Fatalf("engine: init logger: %v", err)
	}
	metrics := obslog.NewMetrics()

	cat := catalog.NewMemStore()
	if cfg.CatalogURL != "" {
		log.Printf("engine: catalog seed loading from %s is left to cmd/admin catalog seed; starting with an empty catalog", cfg.CatalogURL)
	}

	strat, err := strategy.Build(cfg.Strategy, map[string]string{"high_value_threshold": cfg.HighValueThreshold})
	if err != nil {
		log.Fatalf("engine: build strategy %q: %v", cfg.Strategy, err)
	}

	var (
		watcher         deal.ChainWatcher
		store           *deal.Store
		converter       *priceconv.Converter
		receivingWallet string
	)

	if cfg.CryptoEnabled {
		wallet, err := walletkeys.FromBase58PrivateKey(cfg.ReceivingWalletKey)
		if err != nil {
			log.Fatalf("engine: load receiving wallet key: %v", err)
		}
		receivingWallet = wallet.Address()

		// secret_encryption_key is an operator-supplied passphrase, not a raw
		// AES key, so it is stretched through PBKDF2 with a fixed salt: the
		// same passphrase must always derive the same key across restarts, or
		// reservation codes encrypted before a restart could never be
		// decrypted after one.
		cipher := deal.NewSecretCipherFromPassphrase(cfg.SecretEncryptionKey, []byte("negotiation-engine/deal-secret"))
		store = deal.NewStore(cipher, time.Duration(cfg.DealTTLSeconds)*time.Second, nil)

		cw, err := chainwatch.New(cfg.ChainRPCURL, cfg.ChainNetwork, receivingWallet, cfg.StableTokenMint)
		if err != nil {
			log.Fatalf("engine: init chain watcher: %v", err)
		}
		watcher = cw

		if cfg.UseFixedRates {
			native, err := decimal.NewFromString(cfg.USDPerNative)
			if err != nil {
				log.Fatalf("engine: parse usd_per_native: %v", err)
			}
			stable, err := decimal.NewFromString(cfg.USDPerStable)
			if err != nil {
				log.Fatalf("engine: parse usd_per_stable: %v", err)
			}
			converter = priceconv.NewConverter(priceconv.NewFixedRateOracle(native, stable, "SOL", "USDC"))
		} else {
			logger.Event(obslog.EventPriceOracleUnconfigured, "startup", "", "", map[string]any{
				"note": "use_fixed_rates=false has no oracle backend configured; price conversion will fail until one is wired",
			})
			converter = priceconv.NewConverter(priceconv.NewFixedRateOracle(decimal.Zero, decimal.Zero, "SOL", "USDC"))
		}
	}

	eng := engine.New(cat, strat, store, converter, watcher, logger, metrics, engine.Options{
		CryptoEnabled:   cfg.CryptoEnabled,
		CryptoCurrency:  cfg.CryptoCurrency,
		ReceivingWallet: receivingWallet,
		Network:         cfg.ChainNetwork,
		ChainDeadline:   5 * time.Second,
	})

	router := enginerpc.NewRouter(eng)
	log.Printf("engine listening on %s", cfg.EngineBindAddr)
	if err := http.ListenAndServe(cfg.EngineBindAddr, router); err != nil {
		logrus.WithError(err).Fatal("engine: server exited")
	}
}
