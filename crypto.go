package greenledger

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	AddressPrefix = "con"
	ServerPrefix  = "ccs"
)

// ZeroAddress is the owner reported for records that do not exist.
var ZeroAddress = mustEncode(AddressPrefix, make([]byte, 20))

func mustEncode(hrp string, data []byte) string {
	addr, err := bech32.ConvertAndEncode(hrp, data)
	if err != nil {
		panic(err)
	}
	return addr
}

func PrivKeyToAddr(privHex string, hrp string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid private key: %v", err)
	}
	return bech32.ConvertAndEncode(hrp, crypto.PubkeyToAddress(key.PublicKey).Bytes())
}

func IsAddress(s string, hrp string) bool {
	prefix, data, err := bech32.DecodeAndConvert(s)
	if err != nil {
		return false
	}
	return prefix == hrp && len(data) == 20
}

func SignBytes(data []byte, privHex string) ([]byte, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	return crypto.Sign(crypto.Keccak256(data), key)
}

// VerifySignature recovers the signer of data and checks it against the bech32 address.
func VerifySignature(data []byte, signature []byte, address string) error {
	hrp, expected, err := bech32.DecodeAndConvert(address)
	if err != nil {
		return fmt.Errorf("invalid address %s: %v", address, err)
	}

	pub, err := crypto.SigToPub(crypto.Keccak256(data), signature)
	if err != nil {
		return fmt.Errorf("failed to recover public key: %v", err)
	}

	recovered := crypto.PubkeyToAddress(*pub).Bytes()
	if hex.EncodeToString(recovered) != hex.EncodeToString(expected) {
		signer, _ := bech32.ConvertAndEncode(hrp, recovered)
		return fmt.Errorf("signature mismatch: signed by %s", signer)
	}

	return nil
}
