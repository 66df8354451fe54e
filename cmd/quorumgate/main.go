package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zen-systems/quorumgate/pkg/classifier"
	"github.com/zen-systems/quorumgate/pkg/config"
	"github.com/zen-systems/quorumgate/pkg/consensus"
	"github.com/zen-systems/quorumgate/pkg/events"
	"github.com/zen-systems/quorumgate/pkg/orchestrator"
	"github.com/zen-systems/quorumgate/pkg/provider"
	"github.com/zen-systems/quorumgate/pkg/router"
)

var (
	policyFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quorumgate",
		Short: "Multi-provider LLM routing with consensus reconciliation",
		Long: `Quorumgate routes queries to the most appropriate LLM provider based on
	query classification, and reconciles divergent answers from multiple
	providers into a single result using quorum-phased voting, weighted
	voting, or expert arbitration.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		},
	}

	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "path to policy config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(providersCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	var consensusFlag bool
	var noConsensusFlag bool
	var algorithmFlag string
	var minAgreement float64
	var excludeFlag []string
	var jsonFlag bool
	var mockFlag bool

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Route a query to the best provider(s) and print the answer",
		Long: `Classifies the query, selects provider(s), and prints the final answer.

	Consensus across multiple providers is triggered automatically for
	consensus-type or critical-urgency queries; use --consensus or
	--no-consensus to override. Use --exclude to remove providers from
	consideration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			clients, err := createClients(cfg, mockFlag)
			if err != nil {
				return fmt.Errorf("failed to create provider clients: %w", err)
			}
			if len(clients) == 0 {
				return fmt.Errorf("no providers configured; set an API key or use --mock")
			}

			opts := orchestrator.RouteOptions{
				Constraints: router.Constraints{ExcludedProviders: excludeFlag},
				Consensus: consensus.Options{
					Algorithm:        consensus.Algorithm(algorithmFlag),
					MinimumAgreement: minAgreement,
				},
			}
			if consensusFlag {
				require := true
				opts.Constraints.RequireConsensus = &require
			}
			if noConsensusFlag {
				require := false
				opts.Constraints.RequireConsensus = &require
			}

			bus := events.NewBus()
			if verbose {
				ch, unsubscribe := bus.Subscribe(32)
				defer unsubscribe()
				go func() {
					for event := range ch {
						log.Debug().
							Str("type", string(event.Type)).
							Str("request_id", event.RequestID).
							Fields(event.Payload).
							Msg("lifecycle event")
					}
				}()
			}

			o := orchestrator.New(clients, cfg.Policy, bus)
			result, err := o.Route(context.Background(), query, opts)
			if err != nil {
				return err
			}

			if jsonFlag {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Fprintf(os.Stderr, "%s\n\n", result.Explanation)
			fmt.Println(result.FinalAnswer)
			return nil
		},
	}

	cmd.Flags().BoolVar(&consensusFlag, "consensus", false, "force consensus across all providers")
	cmd.Flags().BoolVar(&noConsensusFlag, "no-consensus", false, "force the single-provider path")
	cmd.Flags().StringVar(&algorithmFlag, "algorithm", "", "consensus algorithm (quorum-phased, weighted-voting, expert-arbitration)")
	cmd.Flags().Float64Var(&minAgreement, "min-agreement", 0, "minimum agreement threshold (0 uses policy default)")
	cmd.Flags().StringSliceVar(&excludeFlag, "exclude", nil, "providers to exclude from routing")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&mockFlag, "mock", false, "use mock providers (no API calls)")

	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [query]",
		Short: "Show how a query would be classified and routed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			cls := classifier.Classify(args[0])
			selector := router.NewSelector(orchestrator.ProfilesFromPolicy(cfg.Policy))
			sel, err := selector.Select(args[0], cls, router.Constraints{})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Type\t%s\n", cls.Type)
			fmt.Fprintf(w, "Urgency\t%s\n", cls.Urgency)
			fmt.Fprintf(w, "Complexity\t%.2f\n", cls.Complexity)
			fmt.Fprintf(w, "Domains\t%s\n", strings.Join(cls.Domains, ", "))
			fmt.Fprintf(w, "Estimated tokens\t%d\n", cls.EstimatedTokens)
			fmt.Fprintf(w, "Primary\t%s\n", sel.Primary)
			if sel.Secondary != "" {
				fmt.Fprintf(w, "Secondary\t%s\n", sel.Secondary)
			}
			fmt.Fprintf(w, "Consensus\t%v\n", sel.RequiresConsensus)
			if sel.RequiresConsensus {
				fmt.Fprintf(w, "Consensus providers\t%s\n", strings.Join(sel.ConsensusProviders, ", "))
			}
			fmt.Fprintf(w, "Routing confidence\t%.2f\n", sel.RoutingConfidence)
			fmt.Fprintf(w, "Estimated cost\t$%.4f\n", sel.EstimatedCost)
			return w.Flush()
		},
	}
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Show the classification keyword tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUERY TYPE\tTRIGGERS")

			triggers := classifier.Triggers()
			var types []string
			for typ := range triggers {
				types = append(types, string(typ))
			}
			sort.Strings(types)
			for _, typ := range types {
				fmt.Fprintf(w, "%s\t%s\n", typ, strings.Join(triggers[classifier.QueryType(typ)], ", "))
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, "DOMAIN\tKEYWORDS")

			domains := classifier.DomainKeywords()
			var names []string
			for name := range domains {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(domains[name], ", "))
			}

			return w.Flush()
		},
	}
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers and their profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			var names []string
			for name := range cfg.Policy.Providers {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODEL\tWEIGHT\tSPECIALTIES\tSTATUS")
			for _, name := range names {
				profile := cfg.Policy.Providers[name]
				status := "no key"
				if cfg.HasProvider(name) {
					status = "ready"
				}
				if name == cfg.Policy.DefaultProvider {
					status += " (default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
					name, profile.Model, profile.QualityWeight,
					strings.Join(profile.Specialties, ", "), status)
			}
			return w.Flush()
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [policy.yaml]",
		Short: "Validate a policy config file",
		Long:  "Validates policy YAML without routing anything.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.LoadPolicyConfig(args[0]); err != nil {
				return err
			}
			fmt.Println("Policy config is valid.")
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	if policyFile != "" {
		return config.LoadWithPolicyFile(policyFile)
	}
	return config.Load()
}

func createClients(cfg *config.Config, mock bool) (map[string]provider.Client, error) {
	clients := make(map[string]provider.Client)

	if mock {
		for name := range cfg.Policy.Providers {
			clients[name] = provider.NewMockClient(name)
		}
		return clients, nil
	}

	if cfg.AnthropicAPIKey != "" {
		c, err := provider.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic client: %w", err)
		}
		clients["anthropic"] = c
	}

	if cfg.OpenAIAPIKey != "" {
		c, err := provider.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		clients["openai"] = c
	}

	if cfg.GoogleAPIKey != "" {
		c, err := provider.NewGoogleClient(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google client: %w", err)
		}
		clients["google"] = c
	}

	if cfg.DeepSeekAPIKey != "" {
		c, err := provider.NewDeepSeekClient(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek client: %w", err)
		}
		clients["deepseek"] = c
	}

	return clients, nil
}
