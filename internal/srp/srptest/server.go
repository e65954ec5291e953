// Package srptest provides the server half of the SRP-6a exchange for tests.
package srptest

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"

	"github.com/guilhermegouw/parley/internal/srp"
)

// ErrClientProof is returned when the client's proof does not verify.
var ErrClientProof = errors.New("client proof does not match")

// Account is a registered user as the server stores it.
type Account struct {
	Name     string
	Salt     []byte
	Verifier *big.Int
}

// NewAccount registers name with password using a random salt.
func NewAccount(group *srp.Group, name, password string) (*Account, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return &Account{
		Name:     name,
		Salt:     salt,
		Verifier: srp.Verifier(group, salt, name, password),
	}, nil
}

// Server is one server-side login attempt.
type Server struct {
	group   *srp.Group
	account *Account
	b       *big.Int
	B       *big.Int
}

// NewServer starts a login attempt for account.
func NewServer(group *srp.Group, account *Account) (*Server, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generating ephemeral secret: %w", err)
	}
	b := new(big.Int).SetBytes(buf)

	// B = k*v + g^b mod N
	k := srp.Multiplier(group)
	B := new(big.Int).Mul(k, account.Verifier)
	B.Add(B, new(big.Int).Exp(group.G, b, group.N))
	B.Mod(B, group.N)

	return &Server{group: group, account: account, b: b, B: B}, nil
}

// SaltHex returns the account salt for step one.
func (s *Server) SaltHex() string {
	return srp.EncodeHex(s.account.Salt)
}

// PublicHex returns B for step one.
func (s *Server) PublicHex() string {
	return srp.EncodeHex(s.B.Bytes())
}

// Verify checks the client's proof and returns the counter-proof.
func (s *Server) Verify(clientPublicHex, clientProofHex string) (string, error) {
	aBytes, err := srp.DecodeHex(clientPublicHex)
	if err != nil {
		return "", err
	}
	proof, err := srp.DecodeHex(clientProofHex)
	if err != nil {
		return "", err
	}
	A := new(big.Int).SetBytes(aBytes)
	g := s.group

	// S = (A * v^u) ^ b mod N
	u := srp.Scrambler(g, A, s.B)
	S := new(big.Int).Exp(s.account.Verifier, u, g.N)
	S.Mul(S, A)
	S.Mod(S, g.N)
	S.Exp(S, s.b, g.N)

	key := srp.SessionKey(g, S)
	want := srp.ClientProof(g, s.account.Name, s.account.Salt, A, s.B, key)
	if subtle.ConstantTimeCompare(want, proof) != 1 {
		return "", ErrClientProof
	}
	return srp.EncodeHex(srp.ServerProof(g, A, proof, key)), nil
}
