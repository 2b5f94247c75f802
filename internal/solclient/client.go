// Package solclient drives the single-shot submit pipeline against a Solana
// node: fetch a recent blockhash, build and sign the transaction, send it,
// and poll for confirmation.
package solclient

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	clierr "github.com/ggonzalez94/arborist/internal/errors"
)

// RPC is the node surface the orchestrator consumes. *rpc.Client satisfies
// it; tests inject fakes.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error)
}

// Options configure a Client. SkipPreflight is an explicit toggle rather
// than a build-mode artifact.
type Options struct {
	Commitment    rpc.CommitmentType
	SkipPreflight bool
	PollInterval  time.Duration
	// RequestTimeout bounds each individual RPC call. The submit pipeline
	// as a whole has no deadline; confirmation polling ends when the
	// blockhash expires or ctx is cancelled.
	RequestTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Commitment:     rpc.CommitmentConfirmed,
		PollInterval:   2 * time.Second,
		RequestTimeout: 90 * time.Second,
	}
}

// Client orchestrates transaction submission. One Submit call is one
// attempt; any retry policy must wrap the whole call.
type Client struct {
	rpc  RPC
	opts Options
}

func New(rpcClient RPC, opts Options) *Client {
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Client{rpc: rpcClient, opts: opts}
}

// Dial builds a Client over the JSON-RPC endpoint at url.
func Dial(url string, opts Options) *Client {
	return New(rpc.New(url), opts)
}

func (c *Client) Commitment() rpc.CommitmentType { return c.opts.Commitment }

// MinimumBalance returns the rent-exempt balance for an account of the given
// size.
func (c *Client) MinimumBalance(ctx context.Context, dataSize uint64) (uint64, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	return c.rpc.GetMinimumBalanceForRentExemption(ctx, dataSize, c.opts.Commitment)
}

// Submit runs the sequential pipeline: blockhash, build and sign, send,
// confirm. Each stage failure is wrapped with its stage label and no later
// stage runs.
func (c *Client) Submit(ctx context.Context, instructions []solana.Instruction, payer solana.PublicKey, signers []solana.PrivateKey) (solana.Signature, error) {
	recent, err := c.latestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, clierr.Wrap(clierr.KindSubmission, "getting latest blockhash", err)
	}

	tx, err := buildAndSign(instructions, payer, recent.Blockhash, signers)
	if err != nil {
		return solana.Signature{}, clierr.Wrap(clierr.KindSubmission, "signing transaction", err)
	}

	sig, err := c.send(ctx, tx)
	if err != nil {
		return solana.Signature{}, clierr.Wrap(clierr.KindSubmission, "sending transaction", err)
	}

	if err := c.confirm(ctx, sig); err != nil {
		wrapped := &ConfirmationError{Signature: sig, Err: err}
		return solana.Signature{}, clierr.Wrap(clierr.KindSubmission, fmt.Sprintf("confirming transaction %s", sig), wrapped)
	}
	return sig, nil
}

// ConfirmationError reports a transaction that reached the network but did
// not confirm. It keeps the signature reachable through the wrapped chain.
type ConfirmationError struct {
	Signature solana.Signature
	Err       error
}

func (e *ConfirmationError) Error() string { return e.Err.Error() }
func (e *ConfirmationError) Unwrap() error { return e.Err }

func buildAndSign(instructions []solana.Instruction, payer solana.PublicKey, blockhash solana.Hash, signers []solana.PrivateKey) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, err
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (c *Client) send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	return c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       c.opts.SkipPreflight,
		PreflightCommitment: c.opts.Commitment,
	})
}

// confirm polls signature statuses until the configured commitment is
// reached, the transaction errs on-chain, or a freshly fetched blockhash's
// validity window passes (the expiry signal).
func (c *Client) confirm(ctx context.Context, sig solana.Signature) error {
	recent, err := c.latestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("getting recent blockhash: %w", err)
	}
	lastValid := recent.LastValidBlockHeight

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		confirmed, err := c.checkStatus(ctx, sig)
		if err != nil {
			return err
		}
		if confirmed {
			return nil
		}

		height, err := c.blockHeight(ctx)
		if err != nil {
			return fmt.Errorf("getting block height: %w", err)
		}
		if height > lastValid {
			return fmt.Errorf("transaction was not confirmed before its blockhash expired")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) checkStatus(ctx context.Context, sig solana.Signature) (bool, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return false, fmt.Errorf("getting signature status: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil
	}
	status := out.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("transaction failed on-chain: %v", status.Err)
	}
	return commitmentReached(status.ConfirmationStatus, c.opts.Commitment), nil
}

func commitmentReached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank := func(s string) int {
		switch s {
		case string(rpc.CommitmentProcessed):
			return 0
		case string(rpc.CommitmentConfirmed):
			return 1
		case string(rpc.CommitmentFinalized):
			return 2
		default:
			return -1
		}
	}
	got := rank(string(status))
	return got >= 0 && got >= rank(string(want))
}

type blockhashInfo struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

func (c *Client) latestBlockhash(ctx context.Context) (blockhashInfo, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	out, err := c.rpc.GetLatestBlockhash(ctx, c.opts.Commitment)
	if err != nil {
		return blockhashInfo{}, err
	}
	if out == nil || out.Value == nil {
		return blockhashInfo{}, fmt.Errorf("node returned an empty blockhash result")
	}
	return blockhashInfo{
		Blockhash:            out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

func (c *Client) blockHeight(ctx context.Context) (uint64, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	return c.rpc.GetBlockHeight(ctx, c.opts.Commitment)
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.RequestTimeout)
}
