// mentor is a terminal tutoring assistant for a programming course. Each
// question is routed either to a direct answer or to a search of the
// course material index followed by a grounded answer.
//
// Usage:
//
//	mentor                      start the chat
//	mentor index <path|url>...  add files, zip archives or web pages to the index
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"mentor/chat"
	"mentor/config"
	"mentor/indexing"
	"mentor/model"
	"mentor/ollama"
	"mentor/provider"
	"mentor/retrieval"
	"mentor/router"
	"mentor/storage"
	"mentor/ui"
)

const (
	Version = "v0.1.0"
	License = "Apache-2.0"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("mentor", pflag.ContinueOnError)
	providerFlag := flagSet.String("provider", "", "completion provider (ollama, openai, openrouter, maritalk, anthropic)")
	modelFlag := flagSet.String("model", "", "completion model")
	indexFlag := flagSet.String("index", "", "name of the course material index")
	showVersion := flagSet.Bool("version", false, "print the version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if *showVersion {
		fmt.Printf("mentor %s (%s)\n", Version, License)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *providerFlag != "" {
		cfg.ProviderType = string(provider.MapProviderIDToType(*providerFlag))
	}
	if *modelFlag != "" {
		cfg.Model = *modelFlag
	}
	if *indexFlag != "" {
		cfg.IndexName = *indexFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	config.InitDebugLog(cfg.DataDir())
	config.Debugf("mentor %s starting (provider=%s model=%s)", Version, cfg.ProviderType, cfg.Model)

	store := cfg.CredentialStore
	if pass := os.Getenv("MENTOR_SSH_PASSPHRASE"); pass != "" {
		store.SetPassphrase(pass)
	}
	if err := store.Load(cfg.DataDir()); err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	creds := model.Credentials{
		LLMKey:         store.Get(config.CredentialLLMKey),
		IndexKey:       store.Get(config.CredentialIndexKey),
		IndexName:      cfg.IndexName,
		EmbeddingModel: cfg.EmbeddingModel,
	}
	config.Debugf("credentials loaded: llm=%s index=%s", config.Redact(creds.LLMKey), config.Redact(creds.IndexKey))

	embedder, err := ollama.NewClient(cfg.OllamaHost, cfg.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}
	vectors := storage.NewVectorStore(cfg.IndexDir(), embedder)
	indexer := indexing.NewIndexer(vectors, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if rest := flagSet.Args(); len(rest) > 0 {
		switch rest[0] {
		case "index":
			return runIndex(ctx, indexer, creds, rest[1:])
		default:
			return fmt.Errorf("unknown command %q (try --help)", rest[0])
		}
	}

	estimator := model.NewCharEstimator()
	opts := router.DefaultOptions()
	opts.Fallback = router.FallbackPolicy(cfg.Fallback)
	opts.Timeout = cfg.Timeout
	opts.Trim.MaxTokens = cfg.MaxHistoryTokens

	providerType := provider.ProviderType(cfg.ProviderType)
	svc := chat.NewService(chat.ServiceConfig{
		Router: router.New(retrieval.NewTool(vectors), estimator, opts),
		Factory: provider.NewFactory(provider.Config{
			Type:        providerType,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Usage:       estimator,
		}),
		RequireLLMKey: provider.RequiresAPIKey(providerType),
		ResetGrace:    cfg.ResetGrace,
	})
	session := chat.NewSession(creds, cfg.Greeting)
	config.Debugf("session %s started", session.ID)

	dataDir := cfg.DataDir()
	app := ui.NewApp(ui.Deps{
		Service: svc,
		Session: session,
		Indexer: indexer,
		Model:   cfg.Model,
		SaveCredential: func(name, value string) error {
			store.Set(name, value)
			return store.Save(dataDir)
		},
		SaveIndexName: func(name string) error {
			return config.SetIndexName(dataDir, name)
		},
	})

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running mentor: %w", err)
	}
	return nil
}

// runIndex adds each target to the configured index, continuing past
// targets that fail.
func runIndex(ctx context.Context, indexer *indexing.Indexer, creds model.Credentials, targets []string) error {
	if len(targets) == 0 {
		return errors.New("usage: mentor index <path|url>...")
	}
	params := model.IndexParams{APIKey: creds.IndexKey, IndexName: creds.IndexName, EmbeddingModel: creds.EmbeddingModel}
	if err := params.Validate(); err != nil {
		return err
	}

	var failed int
	for _, target := range targets {
		var (
			report indexing.Report
			err    error
		)
		if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
			report, err = indexer.IndexURL(ctx, params, target)
		} else {
			report, err = indexer.IndexFile(ctx, params, target)
		}
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", target, err)
			continue
		}
		fmt.Println(report)
		for _, s := range report.Skipped {
			fmt.Printf("  skipped %s\n", s)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d target(s) failed", failed, len(targets))
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `mentor %s - course tutoring assistant

Usage:
  mentor [flags]                      start the chat
  mentor [flags] index <path|url>...  add course material to the index

Keys are read from the credential store or from MENTOR_LLM_API_KEY and
MENTOR_INDEX_API_KEY, and can be set in the chat with /key.

Flags:
%s`, Version, flagSet.FlagUsages())
}
