package bubblegum

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestAnchorDiscriminators(t *testing.T) {
	// sha256("global:create_tree")[:8] and sha256("global:set_tree_delegate")[:8].
	cases := []struct {
		name string
		want []byte
	}{
		{"create_tree", []byte{0xa5, 0x53, 0x88, 0x8e, 0x59, 0xca, 0x2f, 0xdc}},
		{"set_tree_delegate", []byte{0xfd, 0x76, 0x42, 0x25, 0xbe, 0x31, 0x9a, 0x66}},
	}
	for _, tc := range cases {
		got := anchorDiscriminator(tc.name)
		if !bytes.Equal(got, tc.want) {
			t.Fatalf("anchorDiscriminator(%q) = %x, want %x", tc.name, got, tc.want)
		}
	}
}

func TestCreateTreeInstructionData(t *testing.T) {
	params := CreateTreeParams{MaxDepth: 14, MaxBufferSize: 64}
	ix := createTreeInstruction(solana.PublicKey{1}, solana.PublicKey{2}, solana.PublicKey{3}, solana.PublicKey{3}, params)

	data, err := ix.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if len(data) != 17 {
		t.Fatalf("data length = %d, want 17", len(data))
	}
	if !bytes.Equal(data[:8], anchorDiscriminator("create_tree")) {
		t.Fatalf("data does not start with the create_tree discriminator: %x", data[:8])
	}
	if got := binary.LittleEndian.Uint32(data[8:12]); got != 14 {
		t.Fatalf("max depth = %d, want 14", got)
	}
	if got := binary.LittleEndian.Uint32(data[12:16]); got != 64 {
		t.Fatalf("max buffer size = %d, want 64", got)
	}
	if data[16] != 0 {
		t.Fatalf("public flag byte = %d, want 0 (None)", data[16])
	}
}

func TestCreateTreeInstructionAccounts(t *testing.T) {
	authority := solana.PublicKey{1}
	tree := solana.PublicKey{2}
	payer := solana.PublicKey{3}

	ix := createTreeInstruction(authority, tree, payer, payer, CreateTreeParams{MaxDepth: 3, MaxBufferSize: 8})
	accounts := ix.Accounts()
	if len(accounts) != 7 {
		t.Fatalf("account count = %d, want 7", len(accounts))
	}

	type meta struct {
		key      solana.PublicKey
		writable bool
		signer   bool
	}
	want := []meta{
		{authority, true, false},
		{tree, true, false},
		{payer, false, true},
		{payer, false, true},
		{NoopProgramID, false, false},
		{CompressionProgramID, false, false},
		{solana.SystemProgramID, false, false},
	}
	for i, w := range want {
		got := accounts[i]
		if !got.PublicKey.Equals(w.key) || got.IsWritable != w.writable || got.IsSigner != w.signer {
			t.Fatalf("account %d = {%s writable=%v signer=%v}, want {%s writable=%v signer=%v}",
				i, got.PublicKey, got.IsWritable, got.IsSigner, w.key, w.writable, w.signer)
		}
	}
}

func TestSetTreeDelegateInstruction(t *testing.T) {
	authority := solana.PublicKey{1}
	creator := solana.PublicKey{2}
	delegate := solana.PublicKey{3}
	tree := solana.PublicKey{4}

	ix := setTreeDelegateInstruction(authority, creator, delegate, tree)
	if !ix.ProgramID().Equals(ProgramID) {
		t.Fatalf("program = %s, want %s", ix.ProgramID(), ProgramID)
	}
	data, err := ix.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if !bytes.Equal(data, anchorDiscriminator("set_tree_delegate")) {
		t.Fatalf("data = %x, want bare set_tree_delegate discriminator", data)
	}

	accounts := ix.Accounts()
	if len(accounts) != 5 {
		t.Fatalf("account count = %d, want 5", len(accounts))
	}
	if !accounts[1].PublicKey.Equals(creator) || !accounts[1].IsSigner {
		t.Fatalf("creator must be the signing account, got %+v", accounts[1])
	}
	if !accounts[2].PublicKey.Equals(delegate) || accounts[2].IsSigner || accounts[2].IsWritable {
		t.Fatalf("delegate must be read-only and unsigned, got %+v", accounts[2])
	}
	if !accounts[3].PublicKey.Equals(tree) || !accounts[3].IsWritable {
		t.Fatalf("tree must be writable, got %+v", accounts[3])
	}
}

func TestTreeAuthorityDerivation(t *testing.T) {
	tree := solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	a, err := TreeAuthority(tree)
	if err != nil {
		t.Fatalf("TreeAuthority: %v", err)
	}
	b, err := TreeAuthority(tree)
	if err != nil {
		t.Fatalf("TreeAuthority: %v", err)
	}
	if !a.Equals(b) {
		t.Fatalf("derivation is not deterministic: %s vs %s", a, b)
	}
	if a.Equals(tree) {
		t.Fatalf("authority must differ from the tree account")
	}
}
