package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"prospect-sim/internal/domain"
	"prospect-sim/internal/integrations/anthropic"
	"prospect-sim/internal/integrations/openai"
	"prospect-sim/internal/integrations/paramstore"
	"prospect-sim/internal/persona"
	"prospect-sim/internal/taxonomy"
	"prospect-sim/internal/usecase"
)

type options struct {
	intelPath   string
	difficulty  string
	personality string
	role        string
	methodology string
	providers   string
	signalScope string
	timeout     time.Duration
	offline     bool
	verbose     bool
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "prospectsim",
		Short: "Practice sales conversations against a simulated prospect",
		Long: `prospectsim builds a buyer persona from company research and plays that
buyer in a conversation, tracking objections and buying signals as you go.

Provider keys are read from ANTHROPIC_API_KEY and OPENAI_API_KEY (a .env file
in the working directory is loaded first). Without keys, or with --offline,
replies come from the built-in response templates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.intelPath, "intel", "", "company intelligence file (YAML or JSON)")
	pf.StringVar(&opts.difficulty, "difficulty", string(domain.DifficultyMedium), "easy, medium, hard or expert")
	pf.StringVar(&opts.personality, "personality", string(domain.PersonalityProfessional), "friendly, professional, skeptical, abrasive or hostile")
	pf.StringVar(&opts.role, "role", "", "prospect role, inferred from the research when empty")
	pf.StringVar(&opts.methodology, "methodology", "", "GAP, SPIN, MEDDIC or BANT")
	pf.StringVar(&opts.providers, "providers", "anthropic,openai", "text providers in preference order")
	pf.StringVar(&opts.signalScope, "signal-scope", string(usecase.SignalScopeRep), "rep or exchange")
	pf.DurationVar(&opts.timeout, "timeout", 8*time.Second, "per-reply generation timeout")
	pf.BoolVar(&opts.offline, "offline", false, "never call a text provider")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newPersonaCmd(opts),
		newRespondCmd(opts),
		newChatCmd(opts),
		newObjectionsCmd(),
		newVersionCmd(),
	)
	return root
}

func newPersonaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "persona",
		Short: "Generate a prospect persona and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := opts.persona()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}
}

func newRespondCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "respond [message]",
		Short: "Answer a single rep message and print the response as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.persona()
			if err != nil {
				return err
			}
			agent, err := opts.agent(newLogger(cmd.ErrOrStderr(), opts.verbose))
			if err != nil {
				return err
			}
			resp, err := agent.GenerateResponse(cmd.Context(), strings.Join(args, " "), opts.conversation(&p, nil))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Hold an interactive conversation with the prospect",
		Long:  "Type a message and press enter. /quit or end of input leaves the call.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := opts.persona()
			if err != nil {
				return err
			}
			agent, err := opts.agent(newLogger(cmd.ErrOrStderr(), opts.verbose))
			if err != nil {
				return err
			}
			return runChat(cmd, agent, opts, &p)
		},
	}
}

func newObjectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objections [category]",
		Short: "List the phrases that raise each objection category",
		Long:  "Categories are listed in tie-break order: when two categories match equally long phrases, the earlier one wins.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := taxonomy.Categories()
			if len(args) == 1 {
				c, err := taxonomy.ParseCategory(args[0])
				if err != nil {
					return err
				}
				if c == taxonomy.CategoryNone {
					return errors.New("category name is required")
				}
				categories = []taxonomy.Category{c}
			}
			out := cmd.OutOrStdout()
			for _, c := range categories {
				fmt.Fprintf(out, "%s: %s\n", c, strings.Join(taxonomy.Keywords(c), ", "))
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "prospectsim %s\n", version)
		},
	}
}

func runChat(cmd *cobra.Command, agent *usecase.Agent, opts *options, p *domain.ProspectPersona) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connected with %s, %s at %s. /quit to hang up.\n", displayName(p), p.Title, p.Company)

	var history []domain.ConversationMessage
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}

		resp, err := agent.GenerateResponse(cmd.Context(), line, opts.conversation(p, history))
		if err != nil {
			var ucErr *usecase.Error
			if errors.As(err, &ucErr) && ucErr.Code == usecase.ErrorInvalidInput {
				fmt.Fprintf(out, "(%s)\n", ucErr.Reason)
				continue
			}
			return err
		}

		now := time.Now().UTC()
		history = append(history,
			domain.ConversationMessage{Role: domain.SpeakerRep, Message: line, Timestamp: now},
			domain.ConversationMessage{Role: domain.SpeakerProspect, Message: resp.Message, Timestamp: now},
		)
		fmt.Fprintf(out, "prospect> %s\n", resp.Message)
		fmt.Fprintln(out, statusLine(resp))
	}
}

func statusLine(resp usecase.ConversationResponse) string {
	var b strings.Builder
	st := resp.ObjectionState
	if st.ObjectionRaised {
		fmt.Fprintf(&b, "  [objection %s x%d, pushback %.2f]", st.ObjectionType, st.TimesRaised, st.PushbackLevel)
	} else {
		b.WriteString("  [no open objection]")
	}
	if len(resp.BuyingSignals) > 0 {
		fmt.Fprintf(&b, " [signals %s]", strings.Join(signalNames(resp), ", "))
	}
	if resp.NextQuestion != "" {
		fmt.Fprintf(&b, "\n  hint: %s", resp.NextQuestion)
	}
	return b.String()
}

func signalNames(resp usecase.ConversationResponse) []string {
	names := make([]string, 0, len(resp.BuyingSignals))
	for _, s := range resp.BuyingSignals {
		names = append(names, string(s))
	}
	return names
}

func displayName(p *domain.ProspectPersona) string {
	if p.Role != "" {
		return "the " + string(p.Role)
	}
	return "the prospect"
}

func (o *options) persona() (domain.ProspectPersona, error) {
	intel, err := loadIntel(o.intelPath)
	if err != nil {
		return domain.ProspectPersona{}, err
	}
	return persona.NewGenerator().Generate(intel, persona.Config{
		Difficulty:  domain.ParseDifficulty(o.difficulty),
		Personality: domain.ParsePersonality(o.personality),
		Role:        domain.ParseRole(o.role),
	}), nil
}

func (o *options) conversation(p *domain.ProspectPersona, history []domain.ConversationMessage) usecase.ConversationContext {
	return usecase.ConversationContext{
		Persona:             p,
		ConversationHistory: history,
		Difficulty:          domain.ParseDifficulty(o.difficulty),
		Personality:         domain.ParsePersonality(o.personality),
		SalesMethodology:    domain.ParseSalesMethodology(o.methodology),
	}
}

func (o *options) agent(logger *slog.Logger) (*usecase.Agent, error) {
	var providers []usecase.TextGenerator
	if !o.offline {
		for _, name := range strings.Split(o.providers, ",") {
			p, err := envProvider(strings.ToLower(strings.TrimSpace(name)))
			if err != nil {
				return nil, err
			}
			if p != nil {
				providers = append(providers, p)
			}
		}
	}
	chain := usecase.NewProviderChain(logger, providers...)
	if chain.Len() == 0 {
		logger.Info("no text providers available, using response templates")
	}
	return usecase.NewAgent(chain,
		usecase.WithGenerationTimeout(o.timeout),
		usecase.WithSignalScope(usecase.ParseSignalScope(o.signalScope)),
		usecase.WithLogger(logger),
	)
}

// envProvider builds a provider from its API key in the environment. It
// returns nil when the key is unset or the name is unknown.
func envProvider(name string) (usecase.TextGenerator, error) {
	switch name {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, nil
		}
		var opts []anthropic.Option
		if m := os.Getenv("ANTHROPIC_MODEL"); m != "" {
			opts = append(opts, anthropic.WithModel(m))
		}
		temp, ok, err := envTemperature("ANTHROPIC_TEMPERATURE")
		if err != nil {
			return nil, err
		}
		if ok {
			opts = append(opts, anthropic.WithTemperature(temp))
		}
		c, err := anthropic.NewClient(paramstore.StaticToken(key), opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, nil
		}
		var opts []openai.Option
		if m := os.Getenv("OPENAI_MODEL"); m != "" {
			opts = append(opts, openai.WithModel(m))
		}
		if u := os.Getenv("OPENAI_BASE_URL"); u != "" {
			opts = append(opts, openai.WithBaseURL(u))
		}
		temp, ok, err := envTemperature("OPENAI_TEMPERATURE")
		if err != nil {
			return nil, err
		}
		if ok {
			opts = append(opts, openai.WithTemperature(float32(temp)))
		}
		c, err := openai.NewClient(paramstore.StaticToken(key), opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, nil
}

// envTemperature reads a sampling temperature. ok is false when key is unset.
func envTemperature(key string) (temp float64, ok bool, err error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false, nil
	}
	temp, err = strconv.ParseFloat(v, 64)
	if err != nil || temp < 0 || temp > 2 {
		return 0, false, fmt.Errorf("%s must be a number between 0 and 2, got %q", key, v)
	}
	return temp, true, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
