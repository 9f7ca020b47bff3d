package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	abciserver "github.com/cometbft/cometbft/abci/server"
	dbm "github.com/cometbft/cometbft-db"

	"github.com/humanproof-network/ceremonies/pkg/ceremony"
	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
	"github.com/humanproof-network/ceremonies/pkg/ceremony/verify"
	"github.com/humanproof-network/ceremonies/pkg/ceremonystore"
	"github.com/humanproof-network/ceremonies/pkg/config"
	"github.com/humanproof-network/ceremonies/pkg/consensus"
	"github.com/humanproof-network/ceremonies/pkg/crypto/bls"
	"github.com/humanproof-network/ceremonies/pkg/database"
	"github.com/humanproof-network/ceremonies/pkg/kvdb"
	"github.com/humanproof-network/ceremonies/pkg/ledger"
	"github.com/humanproof-network/ceremonies/pkg/metrics"
	"github.com/humanproof-network/ceremonies/pkg/server"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		validatorID = flag.String("validator-id", "", "validator ID (overrides VALIDATOR_ID env var)")
		dev         = flag.Bool("dev", false, "use relaxed development configuration validation")
		showHelp    = flag.Bool("help", false, "show help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	log.Printf("starting ceremony node")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if *validatorID != "" {
		cfg.ValidatorID = *validatorID
	}

	if *dev {
		if err := cfg.ValidateForDevelopment(); err != nil {
			log.Fatalf("%v", err)
		}
	} else {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("%v", err)
		}
	}

	master, err := parseAccountID(cfg.CeremonyMasterAccount)
	if err != nil {
		log.Fatalf("invalid CEREMONY_MASTER_ACCOUNT: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		log.Fatalf("create data directory %s: %v", cfg.DataDir, err)
	}

	backing, err := dbm.NewDB("ceremony", dbm.BackendType(cfg.KVBackend), cfg.DataDir)
	if err != nil {
		log.Fatalf("open KV backend %s at %s: %v", cfg.KVBackend, cfg.DataDir, err)
	}
	store := ceremonystore.New(kvdb.NewAdapter(backing))
	balances := ledger.NewBalanceLedger(kvdb.NewAdapter(backing))

	verifier, err := buildVerifier(cfg)
	if err != nil {
		log.Fatalf("build signature verifier: %v", err)
	}

	module, err := ceremony.New(store, balances, verifier, kvdb.NewAdapter(backing), ceremony.GenesisConfig{
		CurrentCeremonyIndex: types.CeremonyIndex(cfg.GenesisCeremonyIndex),
		CeremonyReward:       ledger.Amount(cfg.CeremonyReward),
		CeremonyMaster:       master,
	})
	if err != nil {
		log.Fatalf("initialize ceremony module: %v", err)
	}
	log.Printf("ceremony module ready: master=%s reward=%d genesis_index=%d", master, cfg.CeremonyReward, cfg.GenesisCeremonyIndex)

	app := consensus.NewCeremonyApp(module, balances, cfg.ChainID)

	heightMonitor := consensus.NewHeightMonitor(app, consensus.DefaultHeightMonitorConfig())
	heightMonitor.SetOnStallDetected(func(height int64, stallDuration time.Duration) {
		log.Printf("ALERT: host chain stalled at height %d for %v", height, stallDuration)
	})
	heightMonitor.SetOnRecovery(func(height int64) {
		log.Printf("host chain resumed committing blocks at height %d", height)
	})
	if err := heightMonitor.Start(); err != nil {
		log.Fatalf("start height monitor: %v", err)
	}

	var dbClient *database.Client
	var archive *database.ClosedCeremonyRepository
	if cfg.DatabaseURL != "" {
		dbClient, err = database.NewClient(cfg, database.WithLogger(
			log.New(log.Writer(), "[Database] ", log.LstdFlags),
		))
		if err != nil {
			if cfg.DatabaseRequired {
				log.Fatalf("connect to ceremony archive database: %v", err)
			}
			log.Printf("ceremony archive database unavailable, continuing without it: %v", err)
		} else {
			if err := dbClient.MigrateUp(context.Background()); err != nil {
				log.Printf("archive database migration failed: %v", err)
			}
			archive = database.NewClosedCeremonyRepository(dbClient)
			app.SetArchive(archive)
			log.Printf("closed-ceremony archive connected and wired to the ABCI application")
		}
	} else {
		log.Printf("DATABASE_URL not set, closed-ceremony archive disabled")
	}

	abciSrv, err := abciserver.NewServer(cfg.ABCIAddr, "socket", app)
	if err != nil {
		log.Fatalf("create ABCI server: %v", err)
	}
	if err := abciSrv.Start(); err != nil {
		log.Fatalf("start ABCI server: %v", err)
	}
	log.Printf("ABCI application listening on %s for the host CometBFT node", cfg.ABCIAddr)

	mux := http.NewServeMux()
	healthHandlers := server.NewHealthHandlers(cfg.ChainID)
	ceremonyHandlers := server.NewCeremonyHandlers(module, archive, cfg.ChainID, log.New(log.Writer(), "[CeremonyAPI] ", log.LstdFlags))
	rateLimiter := server.NewRateLimiter(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindow)*time.Second)

	mux.HandleFunc("/healthz", healthHandlers.HandleHealth)
	mux.HandleFunc("/status", rateLimiter.Middleware(ceremonyHandlers.HandleStatus))
	mux.HandleFunc("/api/ceremonies/", rateLimiter.Middleware(ceremonyHandlers.HandleClosedCeremony))
	mux.HandleFunc("/api/ceremonies", rateLimiter.Middleware(ceremonyHandlers.HandleRecentClosedCeremonies))
	mux.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Printf("HTTP API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down ceremony node")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := abciSrv.Stop(); err != nil {
		log.Printf("ABCI server shutdown error: %v", err)
	}
	heightMonitor.Stop()
	if dbClient != nil {
		if err := dbClient.Close(); err != nil {
			log.Printf("archive database close error: %v", err)
		}
	}

	log.Printf("ceremony node stopped")
}

// buildVerifier selects the signature verification scheme configured via
// SIGNATURE_SCHEME, loading or generating whatever key material this
// node's own identity needs under that scheme. Witness/master keys are
// provisioned separately via cmd/ceremony-keygen.
func buildVerifier(cfg *config.Config) (verify.Verifier, error) {
	switch cfg.SignatureScheme {
	case "ed25519":
		if _, err := loadOrGenerateEd25519Key(cfg); err != nil {
			return nil, err
		}
		return verify.NewEd25519Verifier(), nil
	case "ecdsa":
		return verify.NewECDSAVerifier(), nil
	case "bls":
		if err := bls.Initialize(); err != nil {
			return nil, fmt.Errorf("initialize bls: %w", err)
		}
		km := bls.NewKeyManager(cfg.BLSKeyPath)
		if err := km.LoadOrGenerateKey(); err != nil {
			return nil, fmt.Errorf("load or generate bls key: %w", err)
		}
		log.Printf("bls node key ready: %s", km.GetPublicKeyHex())
		return verify.NewBLSVerifier(), nil
	default:
		return nil, fmt.Errorf("unknown signature scheme %q", cfg.SignatureScheme)
	}
}

// loadOrGenerateEd25519Key loads this node's ed25519 key from
// cfg.Ed25519KeyPath (defaulting under cfg.DataDir), generating and
// persisting a new one on first run.
func loadOrGenerateEd25519Key(cfg *config.Config) (ed25519.PrivateKey, error) {
	keyPath := cfg.Ed25519KeyPath
	if keyPath == "" {
		keyPath = filepath.Join(cfg.DataDir, "ed25519_key.hex")
	}

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(priv)), 0600); err != nil {
			return nil, fmt.Errorf("save ed25519 key to %s: %w", keyPath, err)
		}
		log.Printf("generated new ed25519 node key: %s", keyPath)
		return priv, nil
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read ed25519 key from %s: %w", keyPath, err)
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode ed25519 key from %s: %w", keyPath, err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 key size in %s: expected %d, got %d", keyPath, ed25519.PrivateKeySize, len(keyBytes))
	}
	return ed25519.PrivateKey(keyBytes), nil
}

func parseAccountID(s string) (types.AccountID, error) {
	var account types.AccountID
	if err := account.UnmarshalJSON([]byte(`"` + s + `"`)); err != nil {
		return types.AccountID{}, err
	}
	return account, nil
}

func printHelp() {
	fmt.Println("ceremony node — a proof-of-personhood ceremony ABCI application")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ceremony-node [OPTIONS]")
	fmt.Println()
	flag.PrintDefaults()
}
