// Package commitment computes the Merkle roots that bind a mix run to the
// ballots it consumed and produced. Each ballot is a leaf keyed by its
// position, with the sha256 of the ciphertext as value.
package commitment

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/arbo"
	"github.com/vocdoni/arbo/memdb"
)

// MaxLevels bounds the depth of the ballots tree, thus the number of leaves.
const MaxLevels = 32

var (
	hashFunction = arbo.HashFunctionSha256
	keyLen       = (MaxLevels + 7) / 8
)

// Tree is an in-memory Merkle tree over an ordered list of ballots.
type Tree struct {
	tree *arbo.Tree
	size int
}

// NewTree builds the tree of the given ballots.
func NewTree(ballots [][]byte) (*Tree, error) {
	tree, err := arbo.NewTree(arbo.Config{
		Database:     memdb.New(),
		MaxLevels:    MaxLevels,
		HashFunction: hashFunction,
	})
	if err != nil {
		return nil, err
	}
	if len(ballots) == 0 {
		return &Tree{tree: tree}, nil
	}
	keys := make([][]byte, len(ballots))
	values := make([][]byte, len(ballots))
	for i, b := range ballots {
		keys[i] = leafKey(i)
		values[i] = leafValue(b)
	}
	invalid, err := tree.AddBatch(keys, values)
	if err != nil {
		return nil, fmt.Errorf("add ballots: %w", err)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%d ballots could not be added, first at index %d",
			len(invalid), invalid[0].Index)
	}
	return &Tree{tree: tree, size: len(ballots)}, nil
}

// Root returns the tree root.
func (t *Tree) Root() (common.Hash, error) {
	root, err := t.tree.Root()
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(root), nil
}

// Size returns the number of ballots in the tree.
func (t *Tree) Size() int {
	return t.size
}

// Proof returns the packed siblings proving the inclusion of the ballot at
// index.
func (t *Tree) Proof(index int) ([]byte, error) {
	if index < 0 || index >= t.size {
		return nil, fmt.Errorf("index %d out of range", index)
	}
	_, _, siblings, exists, err := t.tree.GenProof(leafKey(index))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("ballot %d not in tree", index)
	}
	return siblings, nil
}

// BallotsRoot returns the commitment root of an ordered list of ballots.
func BallotsRoot(ballots [][]byte) (common.Hash, error) {
	t, err := NewTree(ballots)
	if err != nil {
		return common.Hash{}, err
	}
	return t.Root()
}

// VerifyBallot checks that ciphertext is the ballot at index under root.
func VerifyBallot(root common.Hash, index int, ciphertext, siblings []byte) bool {
	valid, err := arbo.CheckProof(hashFunction, leafKey(index), leafValue(ciphertext), root.Bytes(), siblings)
	if err != nil {
		return false
	}
	return valid
}

func leafKey(index int) []byte {
	return arbo.BigIntToBytes(keyLen, big.NewInt(int64(index)))
}

func leafValue(ciphertext []byte) []byte {
	h := sha256.Sum256(ciphertext)
	return h[:]
}
