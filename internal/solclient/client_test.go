package solclient

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	clierr "github.com/ggonzalez94/arborist/internal/errors"
)

type fakeRPC struct {
	blockhashErr error
	sendErr      error
	sendCalls    int

	// statuses is consumed one result per GetSignatureStatuses call; the
	// last entry repeats.
	statuses  []*rpc.SignatureStatusesResult
	statusIdx int
	statusErr error

	heights   []uint64
	heightIdx int

	lastValid uint64
	rentErr   error
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if f.blockhashErr != nil {
		return nil, f.blockhashErr
	}
	lastValid := f.lastValid
	if lastValid == 0 {
		lastValid = 1000
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            solana.Hash{1, 2, 3},
			LastValidBlockHeight: lastValid,
		},
	}, nil
}

func (f *fakeRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	f.sendCalls++
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	return solana.Signature{9}, nil
}

func (f *fakeRPC) GetSignatureStatuses(ctx context.Context, searchHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if len(f.statuses) == 0 {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}
	idx := f.statusIdx
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.statusIdx++
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{f.statuses[idx]}}, nil
}

func (f *fakeRPC) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	if len(f.heights) == 0 {
		return 1, nil
	}
	idx := f.heightIdx
	if idx >= len(f.heights) {
		idx = len(f.heights) - 1
	}
	f.heightIdx++
	return f.heights[idx], nil
}

func (f *fakeRPC) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error) {
	if f.rentErr != nil {
		return 0, f.rentErr
	}
	return dataSize * 10, nil
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.PollInterval = time.Millisecond
	return opts
}

func transferInstruction(from, to solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.SystemProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(from, true, true),
			solana.NewAccountMeta(to, true, false),
		},
		[]byte{2, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0},
	)
}

func TestSubmitConfirmed(t *testing.T) {
	payer, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	status := rpc.ConfirmationStatusConfirmed
	fake := &fakeRPC{
		statuses: []*rpc.SignatureStatusesResult{
			nil,
			{ConfirmationStatus: status},
		},
	}
	client := New(fake, testOptions())

	ix := transferInstruction(payer.PublicKey(), solana.SystemProgramID)
	sig, err := client.Submit(context.Background(), []solana.Instruction{ix}, payer.PublicKey(), []solana.PrivateKey{payer})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sig.IsZero() {
		t.Fatalf("expected non-zero signature")
	}
	if fake.sendCalls != 1 {
		t.Fatalf("sendCalls = %d, want 1", fake.sendCalls)
	}
}

func TestSubmitBlockhashFailureStopsPipeline(t *testing.T) {
	payer, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	fake := &fakeRPC{blockhashErr: errors.New("node down")}
	client := New(fake, testOptions())

	ix := transferInstruction(payer.PublicKey(), solana.SystemProgramID)
	_, err = client.Submit(context.Background(), []solana.Instruction{ix}, payer.PublicKey(), []solana.PrivateKey{payer})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "getting latest blockhash") {
		t.Fatalf("error %q missing stage label", err)
	}
	if fake.sendCalls != 0 {
		t.Fatalf("transaction was sent after blockhash failure")
	}
	cerr, ok := clierr.As(err)
	if !ok || cerr.Kind != clierr.KindSubmission {
		t.Fatalf("expected submission error, got %v", err)
	}
}

func TestSubmitMissingSignerFailsBeforeSend(t *testing.T) {
	payer, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	fake := &fakeRPC{}
	client := New(fake, testOptions())

	ix := transferInstruction(payer.PublicKey(), solana.SystemProgramID)
	_, err = client.Submit(context.Background(), []solana.Instruction{ix}, payer.PublicKey(), nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "signing transaction") {
		t.Fatalf("error %q missing stage label", err)
	}
	if fake.sendCalls != 0 {
		t.Fatalf("transaction was sent without its signer")
	}
}

func TestSubmitSendFailure(t *testing.T) {
	payer, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	fake := &fakeRPC{sendErr: errors.New("preflight failed")}
	client := New(fake, testOptions())

	ix := transferInstruction(payer.PublicKey(), solana.SystemProgramID)
	_, err = client.Submit(context.Background(), []solana.Instruction{ix}, payer.PublicKey(), []solana.PrivateKey{payer})
	if err == nil || !strings.Contains(err.Error(), "sending transaction") {
		t.Fatalf("error %v missing stage label", err)
	}
}

func TestConfirmOnChainFailureEmbedsSignature(t *testing.T) {
	payer, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	fake := &fakeRPC{
		statuses: []*rpc.SignatureStatusesResult{
			{Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
		},
	}
	client := New(fake, testOptions())

	ix := transferInstruction(payer.PublicKey(), solana.SystemProgramID)
	_, err = client.Submit(context.Background(), []solana.Instruction{ix}, payer.PublicKey(), []solana.PrivateKey{payer})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "confirming transaction") {
		t.Fatalf("error %q missing stage label", err)
	}
	sig := solana.Signature{9}
	if !strings.Contains(err.Error(), sig.String()) {
		t.Fatalf("error %q does not embed the signature", err)
	}
	if !strings.Contains(err.Error(), "failed on-chain") {
		t.Fatalf("error %q does not report the on-chain failure", err)
	}
}

func TestConfirmBlockhashExpiry(t *testing.T) {
	payer, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	fake := &fakeRPC{
		lastValid: 10,
		heights:   []uint64{11},
	}
	client := New(fake, testOptions())

	ix := transferInstruction(payer.PublicKey(), solana.SystemProgramID)
	_, err = client.Submit(context.Background(), []solana.Instruction{ix}, payer.PublicKey(), []solana.PrivateKey{payer})
	if err == nil || !strings.Contains(err.Error(), "blockhash expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestConfirmFinalizedRequiresFinalized(t *testing.T) {
	if commitmentReached(rpc.ConfirmationStatusConfirmed, rpc.CommitmentFinalized) {
		t.Fatalf("confirmed should not satisfy finalized")
	}
	if !commitmentReached(rpc.ConfirmationStatusFinalized, rpc.CommitmentConfirmed) {
		t.Fatalf("finalized should satisfy confirmed")
	}
	if !commitmentReached(rpc.ConfirmationStatusProcessed, rpc.CommitmentProcessed) {
		t.Fatalf("processed should satisfy processed")
	}
	if commitmentReached("", rpc.CommitmentProcessed) {
		t.Fatalf("empty status should never satisfy a commitment")
	}
}

func TestMinimumBalance(t *testing.T) {
	client := New(&fakeRPC{}, testOptions())
	got, err := client.MinimumBalance(context.Background(), 100)
	if err != nil {
		t.Fatalf("MinimumBalance: %v", err)
	}
	if got != 1000 {
		t.Fatalf("MinimumBalance = %d, want 1000", got)
	}
}
