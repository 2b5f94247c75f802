// Package bubblegum builds and submits the Metaplex Bubblegum instructions
// for compressed-NFT merkle trees: allocating the tree account, creating the
// on-chain tree config, and rotating the tree delegate.
package bubblegum

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	clierr "github.com/ggonzalez94/arborist/internal/errors"
	"github.com/ggonzalez94/arborist/internal/solclient"
	"github.com/ggonzalez94/arborist/internal/treesize"
)

var (
	// ProgramID is the mainnet Bubblegum program.
	ProgramID = solana.MustPublicKeyFromBase58("BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY")
	// CompressionProgramID is the SPL account-compression program that owns
	// the merkle tree account.
	CompressionProgramID = solana.MustPublicKeyFromBase58("cmtDvXumGCrqC1Age74AVPhSRVXJMd8PJS91L8KbNCK")
	// NoopProgramID receives the change logs emitted on every tree mutation.
	NoopProgramID = solana.MustPublicKeyFromBase58("noopb9bkMVfRPU8AsbpTGimihmV6WWqiGFKzvUUDhAi")
)

// anchorDiscriminator derives the 8-byte instruction tag Anchor programs
// dispatch on.
func anchorDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

// TreeAuthority is the config PDA Bubblegum derives from the tree account.
func TreeAuthority(tree solana.PublicKey) (solana.PublicKey, error) {
	authority, _, err := solana.FindProgramAddress([][]byte{tree.Bytes()}, ProgramID)
	return authority, err
}

// CreateTreeParams describe the tree to allocate. CanopyDepth only affects
// the account size; the program reads depth and buffer size from the
// instruction data.
type CreateTreeParams struct {
	MaxDepth      uint8
	MaxBufferSize uint16
	CanopyDepth   uint8
}

// CreateTreeResult reports what a successful CreateTree produced.
type CreateTreeResult struct {
	Signature     solana.Signature
	Tree          solana.PublicKey
	TreeAuthority solana.PublicKey
	AccountSize   uint64
	Lamports      uint64
}

// CreateTree allocates a fresh merkle tree account and initializes its
// Bubblegum config in one transaction. The payer funds the account and acts
// as tree creator; the new tree keypair co-signs the allocation.
func CreateTree(ctx context.Context, client *solclient.Client, payer solana.PrivateKey, params CreateTreeParams) (*CreateTreeResult, error) {
	size, err := treesize.Total(params.MaxDepth, params.MaxBufferSize, params.CanopyDepth)
	if err != nil {
		return nil, err
	}

	tree, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, clierr.Wrap(clierr.KindInternal, "generating tree keypair", err)
	}
	treeKey := tree.PublicKey()

	authority, err := TreeAuthority(treeKey)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindInternal, "deriving tree authority", err)
	}

	lamports, err := client.MinimumBalance(ctx, size)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindSubmission, "getting rent exemption balance for new tree", err)
	}

	payerKey := payer.PublicKey()
	allocate := system.NewCreateAccountInstruction(
		lamports,
		size,
		CompressionProgramID,
		payerKey,
		treeKey,
	).Build()

	create := createTreeInstruction(authority, treeKey, payerKey, payerKey, params)

	sig, err := client.Submit(ctx,
		[]solana.Instruction{allocate, create},
		payerKey,
		[]solana.PrivateKey{payer, tree},
	)
	if err != nil {
		return nil, err
	}
	return &CreateTreeResult{
		Signature:     sig,
		Tree:          treeKey,
		TreeAuthority: authority,
		AccountSize:   size,
		Lamports:      lamports,
	}, nil
}

func createTreeInstruction(authority, tree, payer, creator solana.PublicKey, params CreateTreeParams) solana.Instruction {
	data := make([]byte, 0, 17)
	data = append(data, anchorDiscriminator("create_tree")...)
	data = binary.LittleEndian.AppendUint32(data, uint32(params.MaxDepth))
	data = binary.LittleEndian.AppendUint32(data, uint32(params.MaxBufferSize))
	// Option<bool> public: None.
	data = append(data, 0)

	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(authority, true, false),
			solana.NewAccountMeta(tree, true, false),
			solana.NewAccountMeta(payer, false, true),
			solana.NewAccountMeta(creator, false, true),
			solana.NewAccountMeta(NoopProgramID, false, false),
			solana.NewAccountMeta(CompressionProgramID, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		data,
	)
}

// DelegateTree hands minting authority for an existing tree to newDelegate.
// The creator must be the wallet that created the tree.
func DelegateTree(ctx context.Context, client *solclient.Client, creator solana.PrivateKey, tree, newDelegate solana.PublicKey) (solana.Signature, error) {
	authority, err := TreeAuthority(tree)
	if err != nil {
		return solana.Signature{}, clierr.Wrap(clierr.KindInternal, "deriving tree authority", err)
	}
	return DelegateTreeWithConfig(ctx, client, creator, tree, newDelegate, authority)
}

// DelegateTreeWithConfig is DelegateTree with an explicit tree config
// account instead of the derived one.
func DelegateTreeWithConfig(ctx context.Context, client *solclient.Client, creator solana.PrivateKey, tree, newDelegate, configAccount solana.PublicKey) (solana.Signature, error) {
	ix := setTreeDelegateInstruction(configAccount, creator.PublicKey(), newDelegate, tree)
	return client.Submit(ctx, []solana.Instruction{ix}, creator.PublicKey(), []solana.PrivateKey{creator})
}

func setTreeDelegateInstruction(authority, creator, newDelegate, tree solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(authority, true, false),
			solana.NewAccountMeta(creator, false, true),
			solana.NewAccountMeta(newDelegate, false, false),
			solana.NewAccountMeta(tree, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		anchorDiscriminator("set_tree_delegate"),
	)
}
