// Package app wires the cobra command tree: flag parsing, config
// resolution, signer handling, and the final error rendering.
package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/arborist/internal/config"
	clierr "github.com/ggonzalez94/arborist/internal/errors"
	"github.com/ggonzalez94/arborist/internal/journal"
	"github.com/ggonzalez94/arborist/internal/signer"
	"github.com/ggonzalez94/arborist/internal/solclient"
	"github.com/ggonzalez94/arborist/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	now    func() time.Time

	// prompter and newRPC are injectable for tests.
	prompter signer.Prompter
	newRPC   func(url string) solclient.RPC
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		stdin:  os.Stdin,
		now:    time.Now,
		newRPC: func(url string) solclient.RPC { return rpc.New(url) },
	}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	journal  *journal.Journal
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := normalizeRunError(root.Execute())
	if state.journal != nil {
		_ = state.journal.Close()
	}
	if err == nil {
		return 0
	}
	r.renderError(err)
	return clierr.ExitCode(err)
}

// renderError prints the single wrapped chain. A user abort carries its own
// message and skips the ERROR prefix.
func (r *Runner) renderError(err error) {
	if clierr.IsAbort(err) {
		_, _ = fmt.Fprintln(r.stderr, err.Error())
		return
	}
	red := color.New(color.FgRed)
	_, _ = red.Fprintf(r.stderr, "ERROR: %v\n", err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Create and manage Bubblegum compressed-NFT merkle trees",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				if _, ok := clierr.As(err); ok {
					return err
				}
				return clierr.Wrap(clierr.KindUsage, "load configuration", err)
			}
			s.settings = settings
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.KindUsage, "parse flags", err)
	})

	cmd.PersistentFlags().StringVarP(&s.flags.ConfigPath, "config", "C", "", "Path to the solana CLI config file")
	cmd.PersistentFlags().StringVarP(&s.flags.URL, "url", "u", "", "RPC URL or moniker (m/mainnet-beta, t/testnet, d/devnet, l/localhost)")
	cmd.PersistentFlags().StringVarP(&s.flags.Keypair, "keypair", "k", "", "Signer source (path, prompt://, usb://ledger, or -)")
	cmd.PersistentFlags().StringVar(&s.flags.Commitment, "commitment", "", "Commitment level (processed|confirmed|finalized)")
	cmd.PersistentFlags().UintVar(&s.flags.RPCTimeoutSeconds, "rpc-timeout", 0, "Per-request RPC timeout in seconds (default 90)")
	cmd.PersistentFlags().BoolVar(&s.flags.SkipSeedPhraseValidation, "skip-seed-phrase-validation", false, "Accept seed phrases that fail BIP-39 checksum validation")
	cmd.PersistentFlags().BoolVar(&s.flags.ConfirmKey, "confirm-key", false, "Show the recovered pubkey and ask before using it")
	cmd.PersistentFlags().BoolVar(&s.flags.SkipPreflight, "skip-preflight", false, "Skip the preflight transaction simulation")
	cmd.PersistentFlags().BoolVar(&s.flags.NoJournal, "no-journal", false, "Do not record submissions in the local journal")

	cmd.AddCommand(s.newCreateTreeCommand())
	cmd.AddCommand(s.newDelegateTreeCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) client() *solclient.Client {
	opts := solclient.DefaultOptions()
	opts.Commitment = s.settings.Commitment
	opts.SkipPreflight = s.settings.SkipPreflight
	opts.RequestTimeout = s.settings.RPCTimeout
	return solclient.New(s.runner.newRPC(s.settings.RPCURL), opts)
}

// resolveSigner turns the --keypair token (or the config default) into a
// loaded keypair. All prompting happens here, before any network call.
func (s *runtimeState) resolveSigner(roleName string) (solana.PrivateKey, error) {
	token := s.flags.Keypair
	if token == "" {
		token = s.settings.KeypairPath
	}
	source, err := signer.ParseSource(token)
	if err != nil {
		return nil, err
	}
	return signer.Resolve(source, roleName, signer.ResolveOptions{
		SkipSeedPhraseValidation: s.flags.SkipSeedPhraseValidation,
		ConfirmPubkey:            s.flags.ConfirmKey,
		Prompter:                 s.runner.prompter,
		Stdin:                    s.runner.stdin,
	})
}

func (s *runtimeState) openJournal() *journal.Journal {
	if !s.settings.JournalEnabled {
		return nil
	}
	if s.journal == nil {
		j, err := journal.Open(s.settings.JournalPath, s.settings.JournalLockPath)
		if err != nil {
			// Best-effort: a broken journal never blocks a submission.
			_, _ = fmt.Fprintf(s.runner.stderr, "warning: journal unavailable: %v\n", err)
			return nil
		}
		s.journal = j
	}
	return s.journal
}

func (s *runtimeState) recordSubmission(entry journal.Entry) {
	j := s.openJournal()
	if j == nil {
		return
	}
	entry.CreatedAt = s.runner.now().UTC()
	_ = j.Save(entry)
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	return clierr.Wrap(clierr.KindUsage, "invalid command input", err)
}
