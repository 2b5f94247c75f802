package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/arborist/internal/bubblegum"
	clierr "github.com/ggonzalez94/arborist/internal/errors"
	"github.com/ggonzalez94/arborist/internal/journal"
	"github.com/ggonzalez94/arborist/internal/solclient"
	"github.com/ggonzalez94/arborist/internal/treesize"
)

func (s *runtimeState) newCreateTreeCommand() *cobra.Command {
	var depth uint8
	var bufferSize uint16
	var canopyDepth uint8
	cmd := &cobra.Command{
		Use:   "create-tree",
		Short: "Allocate and initialize a new compressed-NFT merkle tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validate capacity before touching the signer or the network
			// so a bad depth/buffer pair fails instantly.
			if _, err := treesize.Total(depth, bufferSize, canopyDepth); err != nil {
				return err
			}

			payer, err := s.resolveSigner("payer")
			if err != nil {
				return err
			}

			client := s.client()
			result, err := bubblegum.CreateTree(cmd.Context(), client, payer, bubblegum.CreateTreeParams{
				MaxDepth:      depth,
				MaxBufferSize: bufferSize,
				CanopyDepth:   canopyDepth,
			})
			if err != nil {
				s.recordFailure("create-tree", err)
				return err
			}

			s.recordSubmission(journal.Entry{
				Signature: result.Signature.String(),
				Command:   "create-tree",
				Status:    journal.StatusConfirmed,
			})
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Merkle tree: %s\n", result.Tree)
			_, _ = fmt.Fprintf(out, "Tree authority: %s\n", result.TreeAuthority)
			_, _ = fmt.Fprintf(out, "Account size: %d bytes (%d lamports rent)\n", result.AccountSize, result.Lamports)
			printSuccess(out, result.Signature)
			return nil
		},
	}
	cmd.Flags().Uint8VarP(&depth, "depth", "d", 14, "Max tree depth (capacity is 2^depth leaves)")
	cmd.Flags().Uint16VarP(&bufferSize, "buffer", "b", 64, "Max concurrent change buffer size")
	cmd.Flags().Uint8VarP(&canopyDepth, "canopy", "c", 0, "Canopy depth cached on-chain")
	return cmd
}

func (s *runtimeState) newDelegateTreeCommand() *cobra.Command {
	var treeArg, configAccountArg, delegateArg string
	cmd := &cobra.Command{
		Use:   "delegate-tree",
		Short: "Hand minting authority for a tree to a new delegate",
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := parsePubkeyFlag("--tree", treeArg)
			if err != nil {
				return err
			}
			delegate, err := parsePubkeyFlag("--delegate", delegateArg)
			if err != nil {
				return err
			}

			creator, err := s.resolveSigner("tree creator")
			if err != nil {
				return err
			}

			client := s.client()
			var sig solana.Signature
			if configAccountArg != "" {
				configAccount, err := parsePubkeyFlag("--config-account", configAccountArg)
				if err != nil {
					return err
				}
				sig, err = bubblegum.DelegateTreeWithConfig(cmd.Context(), client, creator, tree, delegate, configAccount)
				if err != nil {
					s.recordFailure("delegate-tree", err)
					return err
				}
			} else {
				sig, err = bubblegum.DelegateTree(cmd.Context(), client, creator, tree, delegate)
				if err != nil {
					s.recordFailure("delegate-tree", err)
					return err
				}
			}

			s.recordSubmission(journal.Entry{
				Signature: sig.String(),
				Command:   "delegate-tree",
				Status:    journal.StatusConfirmed,
			})
			printSuccess(cmd.OutOrStdout(), sig)
			return nil
		},
	}
	cmd.Flags().StringVarP(&treeArg, "tree", "t", "", "Merkle tree account address")
	cmd.Flags().StringVarP(&configAccountArg, "config-account", "c", "", "Tree config account (derived from the tree when omitted)")
	cmd.Flags().StringVarP(&delegateArg, "delegate", "d", "", "New tree delegate address")
	_ = cmd.MarkFlagRequired("tree")
	_ = cmd.MarkFlagRequired("delegate")
	return cmd
}

func parsePubkeyFlag(name, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, clierr.Wrap(clierr.KindUsage, fmt.Sprintf("parse %s", name), err)
	}
	return key, nil
}

// recordFailure journals a failed submission when the transaction reached
// the network; errors before send have nothing to record.
func (s *runtimeState) recordFailure(command string, err error) {
	var confirmErr *solclient.ConfirmationError
	if !errors.As(err, &confirmErr) {
		return
	}
	s.recordSubmission(journal.Entry{
		Signature: confirmErr.Signature.String(),
		Command:   command,
		Status:    journal.StatusFailed,
		Detail:    err.Error(),
	})
}

func printSuccess(out io.Writer, sig solana.Signature) {
	green := color.New(color.FgGreen)
	_, _ = green.Fprintf(out, "Success! Transaction signature: %s\n", sig)
}
