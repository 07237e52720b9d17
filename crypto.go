package concrnt

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// GetHash returns the legacy keccak256 digest used for every concrnt signature.
func GetHash(bytes []byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(bytes)
	return hash.Sum(nil)
}

func SignBytes(bytes []byte, privatekey string) ([]byte, error) {
	key, err := crypto.HexToECDSA(privatekey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}

	signature, err := crypto.Sign(GetHash(bytes), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %v", err)
	}

	return signature, nil
}

// VerifySignature recovers the signer of message and checks it owns address.
func VerifySignature(message []byte, signature []byte, address string) error {
	if len(signature) != 65 {
		return fmt.Errorf("invalid signature length: %d", len(signature))
	}

	recovered, err := crypto.SigToPub(GetHash(message), signature)
	if err != nil {
		return fmt.Errorf("failed to recover public key: %v", err)
	}

	hrp, _, err := bech32.DecodeAndConvert(address)
	if err != nil {
		return fmt.Errorf("invalid address %s: %v", address, err)
	}

	sigaddr, err := PubkeyToAddr(recovered, hrp)
	if err != nil {
		return err
	}

	if sigaddr != address {
		return fmt.Errorf("signature mismatch: expected %s, got %s", address, sigaddr)
	}

	return nil
}

func PubkeyToAddr(pubkey *ecdsa.PublicKey, hrp string) (string, error) {
	compressed := crypto.CompressPubkey(pubkey)
	sha := sha256.Sum256(compressed)
	hasher := ripemd160.New()
	hasher.Write(sha[:])

	addr, err := bech32.ConvertAndEncode(hrp, hasher.Sum(nil))
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %v", err)
	}
	return addr, nil
}

func PrivKeyToAddr(privatekey string, hrp string) (string, error) {
	key, err := crypto.HexToECDSA(privatekey)
	if err != nil {
		return "", fmt.Errorf("invalid private key: %v", err)
	}
	return PubkeyToAddr(&key.PublicKey, hrp)
}
