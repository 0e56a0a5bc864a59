package ledger

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/lunfardo314/unitrie/common"
	"golang.org/x/crypto/blake2b"
)

// Wallet is an ed25519 identity: keys plus the address derived from the public key
type Wallet struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	Addr       Address
}

// for determinism
const deterministicSeed = "1234567890987654321"

func WalletFromKey(privKey ed25519.PrivateKey) *Wallet {
	pubKey := privKey.Public().(ed25519.PublicKey)
	return &Wallet{
		PrivateKey: privKey,
		PublicKey:  pubKey,
		Addr:       AddressFromPublicKey(pubKey),
	}
}

// WalletWithIndex derives the n-th deterministic test wallet
func WalletWithIndex(n uint16) *Wallet {
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], n)
	seed := blake2b.Sum256(common.Concat([]byte(deterministicSeed), u16[:]))
	return WalletFromKey(ed25519.NewKeyFromSeed(seed[:]))
}
