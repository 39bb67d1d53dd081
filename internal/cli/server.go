package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptoquest-engine/internal/config"
	"cryptoquest-engine/internal/domain"
	"cryptoquest-engine/internal/quizgen"
	"cryptoquest-engine/internal/reward"
	"cryptoquest-engine/internal/scorestore"
	"cryptoquest-engine/internal/session"
	"cryptoquest-engine/internal/settlement"
	transport "cryptoquest-engine/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var provider quizgen.Provider = quizgen.NewStatic(sampleQuestions())
	if cfg.Generator.URL != "" {
		provider = quizgen.NewHTTPProvider(cfg.Generator.URL, cfg.Generator.APIKey)
	}
	quizTTL := config.TTLDuration(cfg.Generator.TTL, 10*time.Minute)
	if redisClient != nil {
		provider = quizgen.NewRedisCache(redisClient, provider, quizTTL)
	} else {
		provider = quizgen.NewCache(provider, quizTTL)
	}

	var attempts scorestore.AttemptRepository = scorestore.NewMemoryRepository()
	if pool != nil {
		attempts = scorestore.NewPostgresRepository(pool)
	}
	if redisClient != nil {
		attempts = scorestore.NewCachedLeaderboard(attempts, redisClient)
	}

	// The settlement client always talks the HTTP contract. Without a
	// remote base URL it loops back to the routes this server mounts.
	settleBase := cfg.Settlement.BaseURL
	if settleBase == "" {
		settleBase = "http://127.0.0.1:" + finalPort
	}
	settle := settlement.NewClient(settleBase)

	var claimer *reward.Claimer
	var reader *reward.ContractReader
	if cfg.Chain.RPCURL != "" && cfg.Chain.Contract != "" {
		rpc := reward.NewRPCClient(cfg.Chain.RPCURL)
		reader = reward.NewContractReader(rpc, cfg.Chain.Contract)
		if cfg.Chain.From != "" {
			wallet := reward.NewRPCWallet(rpc, cfg.Chain.From)
			claimer = reward.NewClaimer(wallet, cfg.Chain.Contract, cfg.Chain.ExplorerURL)
		}
	}

	var assist *quizgen.AssistClient
	if cfg.Assist.ExplainURL != "" || cfg.Assist.SpeechURL != "" {
		assist = quizgen.NewAssistClient(cfg.Assist.ExplainURL, cfg.Assist.SpeechURL)
	}

	engine := session.NewEngine(provider, session.NewStore())
	window := config.TTLDuration(cfg.Cooldown.Window, 0)
	playHandler := transport.NewPlayHandler(engine, settle, claimer, assist, window)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", playHandler.ServePlay)
	transport.NewAPIHandler(attempts).Register(mux)
	if reader != nil {
		transport.NewWalletHandler(reader).Register(mux)
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions is the fallback question bank used when no generator
// service is configured. Short sets are fine; sessions adapt to what the
// provider returns.
func sampleQuestions() map[string][]domain.Question {
	return map[string][]domain.Question{
		"beginner": {
			{
				Prompt:       "What is a blockchain?",
				Answers:      []string{"A distributed ledger", "A type of wallet", "A mining rig", "An exchange"},
				CorrectIndex: 0,
			},
			{
				Prompt:       "What does BTC stand for?",
				Answers:      []string{"Binary Token Chain", "Bitcoin", "Blockchain Transfer Code", "Base Trade Currency"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "Where are cryptocurrency private keys stored?",
				Answers:      []string{"On the exchange", "In a wallet", "On the blockchain", "In a smart contract"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What is a gas fee?",
				Answers:      []string{"A mining reward", "An exchange commission", "The cost of executing a transaction", "A staking penalty"},
				CorrectIndex: 2,
			},
			{
				Prompt:       "Which network introduced smart contracts?",
				Answers:      []string{"Bitcoin", "Ethereum", "Litecoin", "Dogecoin"},
				CorrectIndex: 1,
			},
		},
		"intermediate": {
			{
				Prompt:       "What is a liquidity pool?",
				Answers:      []string{"A mining pool", "Locked token pairs enabling swaps", "A staking validator set", "An order book"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What does AMM stand for?",
				Answers:      []string{"Automated Market Maker", "Asset Management Module", "Active Mining Machine", "Aggregated Money Market"},
				CorrectIndex: 0,
			},
			{
				Prompt:       "What is impermanent loss?",
				Answers:      []string{"A failed transaction", "Value divergence for liquidity providers", "A slashing penalty", "A burned token"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What secures proof-of-stake networks?",
				Answers:      []string{"Hash power", "Staked collateral", "Central servers", "Token burns"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What is a stablecoin pegged to?",
				Answers:      []string{"Gold only", "A reference asset such as USD", "Bitcoin", "Gas prices"},
				CorrectIndex: 1,
			},
		},
		"advanced": {
			{
				Prompt:       "What problem do rollups address?",
				Answers:      []string{"Key management", "Layer-1 throughput limits", "Token naming", "Wallet recovery"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What is MEV?",
				Answers:      []string{"Maximal extractable value", "Minimum exchange volume", "Multi-entity validation", "Merged epoch voting"},
				CorrectIndex: 0,
			},
			{
				Prompt:       "What does a zero-knowledge proof demonstrate?",
				Answers:      []string{"Ownership of hash power", "A statement's truth without revealing the witness", "Transaction ordering", "Block finality"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What is a reentrancy attack?",
				Answers:      []string{"A replayed signature", "A contract re-entered before state updates", "A 51% attack", "A dusting attack"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What does EIP-1559 change?",
				Answers:      []string{"Block size", "Fee market with base fee burning", "Consensus algorithm", "Address format"},
				CorrectIndex: 1,
			},
		},
		"expert": {
			{
				Prompt:       "What is a validity proof in a zk-rollup?",
				Answers:      []string{"A fraud challenge", "A succinct proof that the state transition is correct", "A signature aggregation", "A timestamp attestation"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What is the data availability problem?",
				Answers:      []string{"Slow RPC nodes", "Ensuring published block data is retrievable", "Wallet sync lag", "Archive node pruning"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What does BLS signature aggregation enable?",
				Answers:      []string{"Faster mining", "Compact multi-signer attestations", "Larger blocks", "Cheaper storage"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What is a commit-reveal scheme used for?",
				Answers:      []string{"Hiding a value until a later reveal phase", "Compressing calldata", "Sharding state", "Rotating validators"},
				CorrectIndex: 0,
			},
			{
				Prompt:       "What is stateless validation?",
				Answers:      []string{"Validating without the full state using witnesses", "Skipping signature checks", "Trusting sequencers", "Pruning old blocks"},
				CorrectIndex: 0,
			},
		},
		"master": {
			{
				Prompt:       "What does the Fiat-Shamir heuristic remove from an interactive proof?",
				Answers:      []string{"The witness", "The verifier's random challenges", "The prover", "The commitment"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What is a KZG commitment used for in proto-danksharding?",
				Answers:      []string{"Validator selection", "Polynomial commitments to blob data", "Fee estimation", "Nonce ordering"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What property does single-slot finality target?",
				Answers:      []string{"Faster block production", "Irreversibility within one slot", "Lower gas fees", "Smaller state size"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "What is proposer-builder separation designed to mitigate?",
				Answers:      []string{"Censorship and MEV centralization", "State bloat", "Reorg storms", "Dust accumulation"},
				CorrectIndex: 0,
			},
			{
				Prompt:       "What does a Verkle tree improve over a Merkle Patricia trie?",
				Answers:      []string{"Hash speed", "Witness size", "Write amplification", "Block gas limit"},
				CorrectIndex: 1,
			},
		},
	}
}
