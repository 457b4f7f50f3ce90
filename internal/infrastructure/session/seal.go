package session

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/laundrypro/portal/internal/core/domain"
)

var sealMagic = []byte("LPS1")

// sealer encrypts the slot with NaCl secretbox under a key derived from the
// configured secret. Layout: magic | nonce | box.
type sealer struct {
	key [32]byte
}

func newSealer(secret string) *sealer {
	if secret == "" {
		return nil
	}
	return &sealer{key: sha256.Sum256([]byte(secret))}
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	out := append([]byte{}, sealMagic...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plain, &nonce, &s.key), nil
}

func (s *sealer) open(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, sealMagic) || len(data) < len(sealMagic)+24+secretbox.Overhead {
		return nil, fmt.Errorf("%w: not a sealed slot", domain.ErrSessionCorrupt)
	}
	data = data[len(sealMagic):]

	var nonce [24]byte
	copy(nonce[:], data[:24])
	plain, ok := secretbox.Open(nil, data[24:], &nonce, &s.key)
	if !ok {
		return nil, fmt.Errorf("%w: seal check failed", domain.ErrSessionCorrupt)
	}
	return plain, nil
}
