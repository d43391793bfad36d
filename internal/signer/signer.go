// Package signer signs outgoing classifier requests with a secp256k1 key so
// a classifier service can tell which pdfguard instance is calling.
package signer

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// Request headers set by SignRequest.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderAddress   = "X-Signer-Address"
)

// Signer produces recoverable secp256k1 signatures.
type Signer struct {
	key     *ecdsa.PrivateKey
	address string
}

// New creates a Signer from a hex-encoded private key (0x prefix optional).
func New(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("signer: invalid hex key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("signer: key must be 32 bytes, got %d", len(raw))
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}, nil
}

// Address is the checksummed address derived from the key.
func (s *Signer) Address() string { return s.address }

// Sign returns (hex signature, timestamp in nanoseconds).
//
// Scheme:
//  1. digest = keccak256(sha256(payload) || decimal(timestamp_ns))
//  2. 65-byte [R || S || V] signature of digest, hex encoded
func (s *Signer) Sign(payload []byte) (sig string, tsNano int64) {
	ts := time.Now().UnixNano()
	out, err := crypto.Sign(digest(payload, ts), s.key)
	if err != nil {
		// Only possible for a digest that is not 32 bytes.
		panic(fmt.Sprintf("signer: %v", err))
	}
	return hex.EncodeToString(out), ts
}

// SignRequest signs payload and sets the signature headers on req.
func (s *Signer) SignRequest(req *http.Request, payload []byte) {
	sig, ts := s.Sign(payload)
	req.Header.Set(HeaderSignature, sig)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderAddress, s.address)
}

// Recover returns the address that produced sig over payload at ts.
func Recover(payload []byte, ts int64, sig string) (string, error) {
	raw, err := hex.DecodeString(sig)
	if err != nil {
		return "", fmt.Errorf("signer: invalid signature hex: %w", err)
	}
	pub, err := crypto.SigToPub(digest(payload, ts), raw)
	if err != nil {
		return "", fmt.Errorf("signer: recover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

func digest(payload []byte, ts int64) []byte {
	h := sha256.Sum256(payload)
	return crypto.Keccak256(h[:], []byte(strconv.FormatInt(ts, 10)))
}
