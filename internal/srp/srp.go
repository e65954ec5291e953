// Package srp implements the client side of the SRP-6a password
// authenticated key exchange (RFC 5054 group, SHA-256), plus the hex codec
// every protocol value crosses the wire in.
package srp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Protocol errors.
var (
	ErrBadServerPublic = errors.New("server public value is invalid")
	ErrBadScrambler    = errors.New("scrambling parameter is zero")
	ErrServerProof     = errors.New("server proof does not match")
)

// Group is a safe-prime group with generator.
type Group struct {
	N *big.Int
	G *big.Int
}

// rfc5054N2048 is the 2048-bit modulus from RFC 5054 appendix A.
const rfc5054N2048 = `
AC6BDB41 324A9A9B F166DE5E 1389582F AF72B665 1987EE07 FC319294 3DB56050
A37329CB B4A099ED 8193E075 7767A13D D52312AB 4B03310D CD7F48A9 DA04FD50
E8083969 EDB767B0 CF609517 9A163AB3 661A05FB D5FAAAE8 2918A996 2F0B93B8
55F97993 EC975EEA A80D740A DBF4FF74 7359D041 D5C33EA7 1D281E44 6B14773B
CA97B43A 23FB8016 76BD207A 436C6481 F1D2B907 8717461A 5B9D32E6 88F87748
544523B5 24B0D57D 5EA77A27 75D2ECFA 032CFBDB F52FB378 61602790 04E57AE6
AF874E73 03CE5329 9CCC041C 7BC308D8 2A5698F3 A8D0C382 71AE35F8 E9DBFBB6
94B5C803 D89F7AE4 35DE236D 525F5475 9B65E372 FCD68EF2 0FA7111F 9E4AFF73`

// RFC5054Group2048 is the group used by the remote store.
var RFC5054Group2048 = mustGroup(rfc5054N2048, 2)

func mustGroup(modulus string, g int64) *Group {
	n, ok := new(big.Int).SetString(strings.Join(strings.Fields(modulus), ""), 16)
	if !ok {
		panic("srp: invalid group modulus")
	}
	return &Group{N: n, G: big.NewInt(g)}
}

// secretBytes is the size of the client's ephemeral secret.
const secretBytes = 32

// Client holds one login attempt's ephemeral key pair.
type Client struct {
	group *Group
	a     *big.Int
	A     *big.Int
}

// NewClient generates a fresh ephemeral key pair.
func NewClient(group *Group) (*Client, error) {
	buf := make([]byte, secretBytes)
	for {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generating ephemeral secret: %w", err)
		}
		c := NewClientWithSecret(group, new(big.Int).SetBytes(buf))
		if c.A.Sign() != 0 {
			return c, nil
		}
	}
}

// NewClientWithSecret builds a client from a known secret. Only tests and
// known-answer vectors should need this.
func NewClientWithSecret(group *Group, a *big.Int) *Client {
	return &Client{
		group: group,
		a:     a,
		A:     new(big.Int).Exp(group.G, a, group.N),
	}
}

// PublicHex returns the client's ephemeral public value A.
func (c *Client) PublicHex() string {
	return encodeInt(c.A)
}

// Proof is the outcome of a successful derivation: the shared key, the
// client's proof of it, and the counter-proof the server must answer with.
type Proof struct {
	Key         []byte
	ClientProof []byte
	serverProof []byte
}

// ClientProofHex returns M1 for the wire.
func (p *Proof) ClientProofHex() string {
	return EncodeHex(p.ClientProof)
}

// VerifyServer checks the server's counter-proof M2.
func (p *Proof) VerifyServer(serverProofHex string) error {
	got, err := DecodeHex(serverProofHex)
	if err != nil {
		return fmt.Errorf("decoding server proof: %w", err)
	}
	if subtle.ConstantTimeCompare(got, p.serverProof) != 1 {
		return ErrServerProof
	}
	return nil
}

// Derive computes the shared key and proofs from the server's salt and
// public value.
func (c *Client) Derive(username, password, saltHex, serverPublicHex string) (*Proof, error) {
	salt, err := DecodeHex(saltHex)
	if err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}
	B, err := decodeInt(serverPublicHex)
	if err != nil {
		return nil, fmt.Errorf("decoding server public value: %w", err)
	}

	g := c.group
	if B.Cmp(g.N) >= 0 || B.Sign() == 0 {
		return nil, ErrBadServerPublic
	}

	u := Scrambler(g, c.A, B)
	if u.Sign() == 0 {
		return nil, ErrBadScrambler
	}

	x := PrivateKey(salt, username, password)
	k := Multiplier(g)

	// S = (B - k*g^x) ^ (a + u*x) mod N
	base := new(big.Int).Exp(g.G, x, g.N)
	base.Mul(base, k)
	base.Sub(B, base)
	base.Mod(base, g.N)
	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, c.a)
	S := new(big.Int).Exp(base, exp, g.N)

	key := SessionKey(g, S)
	m1 := ClientProof(g, username, salt, c.A, B, key)
	return &Proof{
		Key:         key,
		ClientProof: m1,
		serverProof: ServerProof(g, c.A, m1, key),
	}, nil
}

// PrivateKey computes x = H(s | H(I ":" P)).
func PrivateKey(salt []byte, username, password string) *big.Int {
	inner := hash([]byte(username + ":" + password))
	return new(big.Int).SetBytes(hash(salt, inner))
}

// Verifier computes v = g^x, the value the server stores at registration.
func Verifier(g *Group, salt []byte, username, password string) *big.Int {
	return new(big.Int).Exp(g.G, PrivateKey(salt, username, password), g.N)
}

// Multiplier computes k = H(N | PAD(g)).
func Multiplier(g *Group) *big.Int {
	return new(big.Int).SetBytes(hash(g.N.Bytes(), pad(g, g.G)))
}

// Scrambler computes u = H(PAD(A) | PAD(B)).
func Scrambler(g *Group, A, B *big.Int) *big.Int {
	return new(big.Int).SetBytes(hash(pad(g, A), pad(g, B)))
}

// SessionKey computes K = H(PAD(S)).
func SessionKey(g *Group, S *big.Int) []byte {
	return hash(pad(g, S))
}

// ClientProof computes M1 = H(H(N) xor H(g) | H(I) | s | A | B | K).
func ClientProof(g *Group, username string, salt []byte, A, B *big.Int, key []byte) []byte {
	hn := hash(g.N.Bytes())
	hg := hash(pad(g, g.G))
	for i := range hn {
		hn[i] ^= hg[i]
	}
	return hash(hn, hash([]byte(username)), salt, pad(g, A), pad(g, B), key)
}

// ServerProof computes M2 = H(A | M1 | K).
func ServerProof(g *Group, A *big.Int, m1, key []byte) []byte {
	return hash(pad(g, A), m1, key)
}

func hash(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// pad left-pads n to the byte length of the modulus.
func pad(g *Group, n *big.Int) []byte {
	size := (g.N.BitLen() + 7) / 8
	return n.FillBytes(make([]byte, size))
}
