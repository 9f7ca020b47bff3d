// Ceremony Keygen CLI
// Generates a witness or ceremony-master keypair under the configured
// signature scheme and prints the resulting AccountID.

package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/verify"
	"github.com/humanproof-network/ceremonies/pkg/crypto/bls"
)

func main() {
	scheme := flag.String("scheme", "ed25519", "signature scheme: ed25519, ecdsa, or bls")
	keyPath := flag.String("key-path", "", "file to write the generated private key to (required for ed25519/bls)")
	flag.Parse()

	var err error
	switch *scheme {
	case "ed25519":
		err = generateEd25519(*keyPath)
	case "ecdsa":
		err = generateECDSA(*keyPath)
	case "bls":
		err = generateBLS(*keyPath)
	default:
		err = fmt.Errorf("unknown scheme %q: want ed25519, ecdsa, or bls", *scheme)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func generateEd25519(keyPath string) error {
	if keyPath == "" {
		return fmt.Errorf("-key-path is required for the ed25519 scheme")
	}
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("generate ed25519 key: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(priv)), 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	account := verify.AccountFromEd25519PublicKey(pub)
	fmt.Printf("scheme: ed25519\naccount: %s\nkey file: %s\n", account, keyPath)
	return nil
}

func generateECDSA(keyPath string) error {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate secp256k1 key: %w", err)
	}
	address := ethcrypto.PubkeyToAddress(priv.PublicKey)
	if keyPath != "" {
		keyHex := hex.EncodeToString(ethcrypto.FromECDSA(priv))
		if err := os.WriteFile(keyPath, []byte(keyHex), 0600); err != nil {
			return fmt.Errorf("write key file: %w", err)
		}
	}
	fmt.Printf("scheme: ecdsa\naccount: %s\n", address.Hex())
	if keyPath != "" {
		fmt.Printf("key file: %s\n", keyPath)
	}
	return nil
}

func generateBLS(keyPath string) error {
	if keyPath == "" {
		return fmt.Errorf("-key-path is required for the bls scheme")
	}
	km := bls.NewKeyManager(keyPath)
	if err := km.GenerateNewKey(); err != nil {
		return fmt.Errorf("generate bls key: %w", err)
	}
	fmt.Printf("scheme: bls\npublic key: %s\nkey file: %s\n", km.GetPublicKeyHex(), keyPath)
	fmt.Println("note: BLS accounts have no on-chain derivation — register this public key out-of-band with the ceremony master's key registry.")
	return nil
}
