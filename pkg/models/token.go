package models

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// Family tags a token with the hasher that produced it. Tokens are only ever
// compared within one family.
type Family string

const (
	// FamilyContent is the exact byte-content family.
	FamilyContent Family = "bin"
	// FamilyPerceptual is the lossy visual family, comparable by bit distance.
	FamilyPerceptual Family = "img"
)

// PerceptualBits is the fixed width of every perceptual token.
const PerceptualBits = 64

var (
	ErrFamilyMismatch = errors.New("tokens belong to different families")
	ErrWidthMismatch  = errors.New("tokens have different bit widths")
	ErrNotComparable  = errors.New("token family is equality-only")
)

// Token is a fingerprint produced by a hasher.
type Token struct {
	Family Family
	Digest []byte
}

// NewPerceptualToken packs a 64-bit perceptual hash big-endian.
func NewPerceptualToken(hash uint64) Token {
	d := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		d[i] = byte(hash)
		hash >>= 8
	}
	return Token{Family: FamilyPerceptual, Digest: d}
}

// Key is the canonical string form, "family:hexdigest". It is what the
// stores persist and what clustering groups on.
func (t Token) Key() string {
	return string(t.Family) + ":" + hex.EncodeToString(t.Digest)
}

func (t Token) String() string { return t.Key() }

// Bits returns the token width in bits.
func (t Token) Bits() int { return len(t.Digest) * 8 }

// Uint64 returns the digest of a 64-bit token as an integer.
func (t Token) Uint64() (uint64, bool) {
	if len(t.Digest) != 8 {
		return 0, false
	}
	var v uint64
	for _, b := range t.Digest {
		v = v<<8 | uint64(b)
	}
	return v, true
}

// Distance returns the Hamming distance between two perceptual tokens.
func (t Token) Distance(other Token) (int, error) {
	if t.Family != other.Family {
		return 0, ErrFamilyMismatch
	}
	if t.Family != FamilyPerceptual {
		return 0, ErrNotComparable
	}
	if len(t.Digest) != len(other.Digest) {
		return 0, ErrWidthMismatch
	}
	d := 0
	for i := range t.Digest {
		d += bits.OnesCount8(t.Digest[i] ^ other.Digest[i])
	}
	return d, nil
}

// ParseToken reverses Token.Key.
func ParseToken(key string) (Token, error) {
	fam, digest, ok := strings.Cut(key, ":")
	if !ok || fam == "" {
		return Token{}, fmt.Errorf("malformed token %q", key)
	}
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return Token{}, fmt.Errorf("malformed token %q: %w", key, err)
	}
	return Token{Family: Family(fam), Digest: raw}, nil
}

// TokenKeys converts tokens to their canonical keys.
func TokenKeys(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Key()
	}
	return out
}

// ParseTokens reverses TokenKeys.
func ParseTokens(keys []string) ([]Token, error) {
	out := make([]Token, 0, len(keys))
	for _, k := range keys {
		t, err := ParseToken(k)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// UniqueTokens drops repeated tokens, keeping first occurrence order.
func UniqueTokens(tokens []Token) []Token {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		k := t.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}
