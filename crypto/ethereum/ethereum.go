// Package ethereum provides secp256k1 signing keys producing Ethereum
// compatible signatures, used to authenticate chain calls.
package ethereum

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/mixvote/util"
)

const (
	// SignatureLength is the size of an ECDSA signature in R || S || V form.
	SignatureLength = ethcrypto.SignatureLength
	// HashLength is the size of the Keccak256 hash.
	HashLength = 32

	signedMessagePrefix = "\x19Ethereum Signed Message:\n"
)

// SignKeys holds a secp256k1 key pair.
type SignKeys struct {
	Public  ecdsa.PublicKey
	Private ecdsa.PrivateKey
}

// NewSignKeys returns an empty SignKeys. Call Generate or AddHexKey to
// load a key.
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate creates a new random key pair.
func (k *SignKeys) Generate() error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return err
	}
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// AddHexKey imports a hex encoded private key, with or without 0x prefix.
func (k *SignKeys) AddHexKey(privHex string) error {
	key, err := ethcrypto.HexToECDSA(util.TrimHex(privHex))
	if err != nil {
		return err
	}
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// HexString returns the compressed public key and the private key, both hex
// encoded without prefix.
func (k *SignKeys) HexString() (string, string) {
	if k.Private.D == nil {
		return "", ""
	}
	pub := hex.EncodeToString(ethcrypto.CompressPubkey(&k.Public))
	priv := hex.EncodeToString(ethcrypto.FromECDSA(&k.Private))
	return pub, priv
}

// PublicKey returns the compressed public key bytes.
func (k *SignKeys) PublicKey() []byte {
	return ethcrypto.CompressPubkey(&k.Public)
}

// Address returns the Ethereum address of the key.
func (k *SignKeys) Address() common.Address {
	return ethcrypto.PubkeyToAddress(k.Public)
}

// AddressString returns the checksummed hex address.
func (k *SignKeys) AddressString() string {
	return k.Address().String()
}

// SignEthereum signs message using the Ethereum signed message prefix. The
// resulting signature is 65 bytes long, with V being 0 or 1.
func (k *SignKeys) SignEthereum(message []byte) ([]byte, error) {
	if k.Private.D == nil {
		return nil, fmt.Errorf("no private key available")
	}
	signature, err := ethcrypto.Sign(Hash(message), &k.Private)
	if err != nil {
		return nil, err
	}
	return signature, nil
}

// AddrFromPublicKey returns the address of a compressed or uncompressed
// public key.
func AddrFromPublicKey(pub []byte) (common.Address, error) {
	var (
		pk  *ecdsa.PublicKey
		err error
	)
	switch len(pub) {
	case 33:
		pk, err = ethcrypto.DecompressPubkey(pub)
	case 65:
		pk, err = ethcrypto.UnmarshalPubkey(pub)
	default:
		return common.Address{}, fmt.Errorf("invalid public key length %d", len(pub))
	}
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pk), nil
}

// AddrFromSignature recovers the signer address of message.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	// accept both 0/1 and 27/28 recovery ids
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(Hash(message), sig)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// Hash returns the Keccak256 of message with the Ethereum signed message
// prefix.
func Hash(message []byte) []byte {
	return HashRaw(fmt.Appendf(nil, "%s%d%s", signedMessagePrefix, len(message), message))
}

// HashRaw returns the Keccak256 of data.
func HashRaw(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}
