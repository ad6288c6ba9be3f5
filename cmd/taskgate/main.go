package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zen-systems/taskgate/pkg/assemble"
	"github.com/zen-systems/taskgate/pkg/cache"
	"github.com/zen-systems/taskgate/pkg/complexity"
	"github.com/zen-systems/taskgate/pkg/config"
	"github.com/zen-systems/taskgate/pkg/engine"
	"github.com/zen-systems/taskgate/pkg/model"
	"github.com/zen-systems/taskgate/pkg/perf"
	"github.com/zen-systems/taskgate/pkg/prefs"
	"github.com/zen-systems/taskgate/pkg/provider"
	"github.com/zen-systems/taskgate/pkg/router"
	"github.com/zen-systems/taskgate/pkg/store"
	"github.com/zen-systems/taskgate/pkg/task"
)

var (
	verboseFlag bool

	tenantFlag   string
	typeFlag     string
	subjectFlag  string
	senderFlag   string
	overrideFlag string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskgate",
		Short: "Adaptive task routing and context assembly for AI email handling",
		Long: `Taskgate scores incoming tasks for complexity, routes each one to the
	cheapest capable model, assembles tenant context around the task, and
	enforces per-tenant preference rules before any model is invoked.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if verboseFlag {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).With().Timestamp().Logger()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(rulesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func analyzeCmd() *cobra.Command {
	var externalFlag, crossEntityFlag bool

	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Score task text for complexity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score := complexity.Analyze(args[0], task.Flags{
				ExternalSystem: externalFlag,
				CrossEntity:    crossEntityFlag,
			})
			return printJSON(score)
		},
	}

	cmd.Flags().BoolVar(&externalFlag, "external", false, "task depends on an external system")
	cmd.Flags().BoolVar(&crossEntityFlag, "cross-entity", false, "task requires a cross-entity lookup")
	return cmd
}

func routeCmd() *cobra.Command {
	var externalFlag, crossEntityFlag, preferSpeedFlag, rankedFlag bool

	cmd := &cobra.Command{
		Use:   "route [text]",
		Short: "Show the routing decision for task text without invoking a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			registry, perfStore, db, err := loadRoutingState(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			req := requestFromFlags(args[0])
			req.Flags.ExternalSystem = externalFlag
			req.Flags.CrossEntity = crossEntityFlag
			if err := req.Validate(); err != nil {
				return err
			}

			rt := newRouter(registry, perfStore)
			score := complexity.Analyze(req.Text, req.Flags)

			var decision *router.Decision
			if rankedFlag {
				decision, err = rt.Recommend(req, score, preferSpeedFlag)
			} else {
				decision, err = rt.Route(req, score)
			}
			if err != nil {
				return err
			}
			return printJSON(struct {
				Score    complexity.Score `json:"score"`
				Decision *router.Decision `json:"decision"`
			}{score, decision})
		},
	}

	addRequestFlags(cmd)
	cmd.Flags().BoolVar(&externalFlag, "external", false, "task depends on an external system")
	cmd.Flags().BoolVar(&crossEntityFlag, "cross-entity", false, "task requires a cross-entity lookup")
	cmd.Flags().BoolVar(&rankedFlag, "ranked", false, "use performance-weighted recommendation")
	cmd.Flags().BoolVar(&preferSpeedFlag, "prefer-speed", false, "bias ranked recommendation toward faster models")
	return cmd
}

func processCmd() *cobra.Command {
	var cacheFlag, rankedFlag, preferSpeedFlag bool

	cmd := &cobra.Command{
		Use:   "process [text]",
		Short: "Run a task through the full pipeline",
		Long: `Runs the gate check, complexity analysis, routing, context assembly,
	and model invocation for one task, then records the outcome.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			eng, db, perfStore, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			req := requestFromFlags(args[0])
			res, err := eng.Process(context.Background(), req, engine.ProcessOptions{
				UseCache:    cacheFlag,
				Ranked:      rankedFlag,
				PreferSpeed: preferSpeedFlag,
			})
			if err != nil {
				return err
			}

			if err := db.SavePerformance(context.Background(), perfStore.Snapshot()); err != nil {
				log.Warn().Err(err).Msg("failed to persist performance records")
			}

			if !res.Processed {
				fmt.Fprintf(os.Stderr, "Not processed: %s\n", res.Gate.Rationale)
				if res.Escalated {
					fmt.Fprintln(os.Stderr, "Task escalated for human handling.")
				}
				return nil
			}

			fmt.Println(res.Output)
			fmt.Fprintf(os.Stderr, "\nmodel=%s class=%s cache_hit=%v cost=$%.6f latency=%dms\n",
				res.Routing.Model, res.Score.Class, res.CacheHit, res.Cost, res.LatencyMs)
			if len(res.DegradedSources) > 0 {
				fmt.Fprintf(os.Stderr, "degraded sources: %s\n", strings.Join(res.DegradedSources, ", "))
			}
			return nil
		},
	}

	addRequestFlags(cmd)
	cmd.Flags().BoolVar(&cacheFlag, "cache", false, "serve and store cached results for this task")
	cmd.Flags().BoolVar(&rankedFlag, "ranked", false, "use performance-weighted recommendation")
	cmd.Flags().BoolVar(&preferSpeedFlag, "prefer-speed", false, "bias ranked recommendation toward faster models")
	return cmd
}

func feedbackCmd() *cobra.Command {
	var modelFlag, suggestedFlag, classFlag string
	var successFlag bool
	var latencyMsFlag int
	var ratingFlag int

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Report a task outcome into the performance store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelFlag == "" {
				return fmt.Errorf("--model is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			registry, perfStore, db, err := loadRoutingState(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			rt := newRouter(registry, perfStore)
			obs := perf.Observation{
				Success: successFlag,
				Latency: time.Duration(latencyMsFlag) * time.Millisecond,
				Rating:  ratingFlag,
			}
			key := perf.Key{
				Model:    modelFlag,
				TaskType: task.Type(typeFlag),
				Class:    complexity.Class(classFlag),
			}
			if suggestedFlag != "" && suggestedFlag != modelFlag {
				rt.ReportOverrideOutcome(modelFlag, suggestedFlag, key.TaskType, key.Class, obs)
			} else {
				perfStore.Record(key, obs)
			}

			if err := db.SavePerformance(context.Background(), perfStore.Snapshot()); err != nil {
				return fmt.Errorf("failed to persist performance records: %w", err)
			}
			fmt.Fprintln(os.Stderr, "Feedback recorded.")
			return nil
		},
	}

	cmd.Flags().StringVar(&modelFlag, "model", "", "model that handled the task")
	cmd.Flags().StringVar(&suggestedFlag, "suggested", "", "model the router suggested, when overridden")
	cmd.Flags().StringVar(&typeFlag, "type", string(task.TypeDraftReply), "task type")
	cmd.Flags().StringVar(&classFlag, "class", string(complexity.ClassStandard), "complexity class")
	cmd.Flags().BoolVar(&successFlag, "success", true, "whether the task succeeded")
	cmd.Flags().IntVar(&latencyMsFlag, "latency-ms", 0, "observed latency in milliseconds")
	cmd.Flags().IntVar(&ratingFlag, "rating", 0, "satisfaction rating 1-5, 0 for unrated")
	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List configured model profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			profiles, err := cfg.Models.Profiles()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROVIDER\tMODEL\tCOST/UNIT\tCLASSES\tRANK")
			for _, p := range profiles {
				classes := make([]string, 0, len(p.Suitable))
				for _, c := range p.Suitable {
					classes = append(classes, string(c))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%s\t%d\n",
					p.ID, p.Provider, p.ProviderModel, p.CostPerUnit,
					strings.Join(classes, ","), p.CapabilityRank())
			}
			return w.Flush()
		},
	}
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules [tenant]",
		Short: "Show a tenant's preference rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			tc, ok := cfg.Tenants.Tenants[args[0]]
			if !ok {
				db, err := store.Open(cfg.DatabasePath)
				if err != nil {
					return err
				}
				defer db.Close()
				stored, err := db.LoadTenantConfigs(context.Background())
				if err != nil {
					return err
				}
				if tc, ok = stored[args[0]]; !ok {
					return fmt.Errorf("unknown tenant %q", args[0])
				}
			}

			fmt.Printf("tenant: %s\nai_enabled: %v\n", args[0], tc.AIEnabled)
			if len(tc.GlobalInstructions) > 0 {
				fmt.Println("global instructions:")
				for _, ins := range tc.GlobalInstructions {
					fmt.Printf("  - %s\n", ins)
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFAMILY\tACTIVE\tEFFECT\tPRIORITY")
			for _, r := range tc.Rules {
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%d\n", r.Name, r.Family, r.Active, r.Effect, r.Priority)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(rulesImportCmd())
	return cmd
}

func rulesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [tenants.yaml]",
		Short: "Store tenant preference rules from a YAML file in the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			incoming, err := config.LoadTenantsConfig(args[0])
			if err != nil {
				return fmt.Errorf("failed to load tenants file: %w", err)
			}

			db, err := store.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			for id, tc := range incoming.Tenants {
				if err := db.SaveTenantConfig(context.Background(), id, tc); err != nil {
					return err
				}
			}
			fmt.Fprintf(os.Stderr, "Imported %d tenant(s).\n", len(incoming.Tenants))
			return nil
		},
	}
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&tenantFlag, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&typeFlag, "type", string(task.TypeDraftReply), "task type")
	cmd.Flags().StringVar(&subjectFlag, "subject", "", "email subject")
	cmd.Flags().StringVar(&senderFlag, "sender", "", "sender address")
	cmd.Flags().StringVar(&overrideFlag, "override", "", "force a specific model")
}

func requestFromFlags(text string) *task.Request {
	return &task.Request{
		ID:            fmt.Sprintf("cli-%d", time.Now().UnixNano()),
		TenantID:      tenantFlag,
		CallerID:      "cli",
		Type:          task.Type(typeFlag),
		Text:          text,
		Subject:       subjectFlag,
		Sender:        senderFlag,
		ModelOverride: overrideFlag,
	}
}

func newRouter(registry *model.Registry, perfStore *perf.Store) *router.Router {
	return router.New(registry, perfStore,
		router.WithNarrowTaskTypes(task.TypeClassify, task.TypePatternExtract))
}

// loadRoutingState opens the database, hydrates the performance store, and
// builds the model registry.
func loadRoutingState(cfg *config.Config) (*model.Registry, *perf.Store, *store.Store, error) {
	profiles, err := cfg.Models.Profiles()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid models config: %w", err)
	}
	registry, err := model.NewRegistry(profiles)
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, err
	}
	perfStore := perf.NewStore()
	records, err := db.LoadPerformance(context.Background())
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	perfStore.Hydrate(records)
	return registry, perfStore, db, nil
}

func buildEngine(cfg *config.Config) (*engine.Engine, *store.Store, *perf.Store, error) {
	registry, perfStore, db, err := loadRoutingState(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	providers, err := createProviders(cfg)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	// File config wins; database-stored tenants fill the gaps.
	stored, err := db.LoadTenantConfigs(context.Background())
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	for id, tc := range stored {
		if _, ok := cfg.Tenants.Tenants[id]; !ok {
			cfg.Tenants.Tenants[id] = tc
		}
	}

	tenants := prefs.NewStaticTenants(cfg.Tenants)
	gate := prefs.NewGate(tenants)
	rt := newRouter(registry, perfStore)

	assembler := assemble.New(
		[]assemble.Source{
			&assemble.TenantSettingsSource{Tenants: tenants},
			&assemble.EntitySource{Store: db},
			&assemble.InteractionHistorySource{Store: db},
			&assemble.PatternSource{Store: db},
		},
		assemble.WithSourceTimeout(time.Duration(cfg.Engine.SourceTimeoutMs)*time.Millisecond),
		assemble.WithMaxBundleBytes(cfg.Engine.MaxBundleBytes),
	)

	eng := engine.New(registry, perfStore, gate, rt, providers,
		engine.WithAssembler(assembler),
		engine.WithCache(cache.New[engine.Result](cfg.Engine.CacheCapacity,
			time.Duration(cfg.Engine.CacheTTLMinutes)*time.Minute)),
		engine.WithCostTracker(engine.NewTracker(cfg.Models.Pricing)),
	)
	return eng, db, perfStore, nil
}

func createProviders(cfg *config.Config) (map[string]provider.Provider, error) {
	providers := make(map[string]provider.Provider)

	if cfg.AnthropicAPIKey != "" {
		p, err := provider.NewAnthropic(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic provider: %w", err)
		}
		providers["anthropic"] = p
	}
	if cfg.OpenAIAPIKey != "" {
		p, err := provider.NewOpenAI(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai provider: %w", err)
		}
		providers["openai"] = p
	}
	if cfg.GoogleAPIKey != "" {
		p, err := provider.NewGoogle(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google provider: %w", err)
		}
		providers["google"] = p
	}
	providers["mock"] = provider.NewMock()

	return providers, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
