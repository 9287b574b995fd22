package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/engram/pkg/adapter"
	"github.com/m-mizutani/engram/pkg/policy"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/engram/pkg/usecase/history"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/engram/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values shared across commands
type config struct {
	configPath string
	logLevel   string

	// Storage
	dataDir  string
	backend  string
	project  string
	database string

	// Adapters
	geminiProject   string
	geminiLocation  string
	generativeModel string
	embeddingModel  string

	// Policy
	policyDir string
}

// fileConfig is the optional YAML configuration file. File values fill in
// whatever the flags left empty; flags always win.
type fileConfig struct {
	DataDir         string `yaml:"data_dir"`
	Backend         string `yaml:"backend"`
	Project         string `yaml:"project"`
	Database        string `yaml:"database"`
	GeminiProject   string `yaml:"gemini_project"`
	GeminiLocation  string `yaml:"gemini_location"`
	GenerativeModel string `yaml:"generative_model"`
	EmbeddingModel  string `yaml:"embedding_model"`
	PolicyDir       string `yaml:"policy_dir"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML configuration file",
			Sources:     cli.EnvVars("ENGRAM_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("ENGRAM_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Aliases:     []string{"d"},
			Usage:       "Directory for the ledger database and index blob",
			Value:       "data",
			Sources:     cli.EnvVars("ENGRAM_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "Ledger backend (sqlite or firestore)",
			Value:       "sqlite",
			Sources:     cli.EnvVars("ENGRAM_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "project",
			Usage:       "Google Cloud project ID (firestore backend)",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego policies gating memory ingestion",
			Sources:     cli.EnvVars("ENGRAM_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "generative-model",
			Usage:       "Gemini model for chat replies",
			Sources:     cli.EnvVars("ENGRAM_GENERATIVE_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini model for embeddings",
			Sources:     cli.EnvVars("ENGRAM_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
	}
}

// load applies the optional YAML config file and installs the logger.
// Call it at the top of every command action.
func (cfg *config) load() error {
	logging.SetDefault(logging.New(cfg.logLevel, os.Stderr))

	if cfg.configPath == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.configPath)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configPath))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configPath))
	}

	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	fill(&cfg.dataDir, fc.DataDir)
	fill(&cfg.backend, fc.Backend)
	fill(&cfg.project, fc.Project)
	fill(&cfg.database, fc.Database)
	fill(&cfg.geminiProject, fc.GeminiProject)
	fill(&cfg.geminiLocation, fc.GeminiLocation)
	fill(&cfg.generativeModel, fc.GenerativeModel)
	fill(&cfg.embeddingModel, fc.EmbeddingModel)
	fill(&cfg.policyDir, fc.PolicyDir)

	return nil
}

func (cfg *config) dbPath() string {
	return filepath.Join(cfg.dataDir, "engram.db")
}

func (cfg *config) indexPath() string {
	return filepath.Join(cfg.dataDir, "engram.index")
}

// newRepository creates the ledger repository for the configured backend
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.backend {
	case "", "sqlite":
		return repository.NewSQLite(cfg.dbPath())
	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required for the firestore backend")
		}
		return repository.NewFirestore(ctx, cfg.project, cfg.database)
	default:
		return nil, goerr.New("unknown backend", goerr.V("backend", cfg.backend))
	}
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}

	var opts []adapter.GeminiOption
	if cfg.generativeModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.generativeModel))
	}
	if cfg.embeddingModel != "" {
		opts = append(opts, adapter.WithEmbeddingModel(cfg.embeddingModel))
	}

	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// newMemoryStore composes repository, embedder, index blob and policy gate
func (cfg *config) newMemoryStore(ctx context.Context, repo repository.Repository, embedder memory.Embedder) (*memory.Store, error) {
	var opts []memory.Option
	if cfg.policyDir != "" {
		gate, err := policy.Load(ctx, cfg.policyDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, memory.WithPolicy(gate))
	}

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create data directory", goerr.V("dir", cfg.dataDir))
	}

	return memory.New(ctx, repo, embedder, cfg.indexPath(), opts...)
}

// newHistoryStore wraps the repository's chat ledger
func (cfg *config) newHistoryStore(repo repository.Repository) *history.Store {
	return history.New(repo)
}

// newStorage creates a snapshot storage adapter
func (cfg *config) newStorage(ctx context.Context, bucketName string) (adapter.Storage, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	storage, err := adapter.NewStorage(ctx, bucketName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newBigQuery creates a BigQuery adapter for ledger export
func (cfg *config) newBigQuery(ctx context.Context) (adapter.BigQuery, error) {
	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	return adapter.NewBigQuery(ctx, cfg.project)
}
