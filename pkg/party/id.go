package party

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"ConfidentialVoting/internal/params"
)

// ID identifies a voter session. IDs are drawn at random from a bounded
// namespace so their ordering carries no information about registration order.
type ID string

// WriteTo makes ID implement the io.WriterTo interface, for transcripts.
func (id ID) WriteTo(w io.Writer) (int64, error) {
	if id == "" {
		return 0, io.ErrUnexpectedEOF
	}
	n, err := w.Write([]byte(id))
	return int64(n), err
}

// Domain separates this type within a transcript hash.
func (ID) Domain() string {
	return "Party ID"
}

// ErrNamespaceExhausted is returned when every identifier has been handed out.
var ErrNamespaceExhausted = errors.New("party: identifier namespace exhausted")

// Namespace hands out collision-checked randomized identifiers of the form
// C1000..C9999. Safe for concurrent use.
type Namespace struct {
	mu   sync.Mutex
	used map[ID]struct{}

	prefix   string
	min, max int64
}

// NewNamespace returns a Namespace over the default identifier range.
func NewNamespace() *Namespace {
	return &Namespace{
		used:   make(map[ID]struct{}),
		prefix: params.IDNamespacePrefix,
		min:    params.IDNamespaceMin,
		max:    params.IDNamespaceMax,
	}
}

// Draw returns a fresh identifier, never one handed out before.
func (ns *Namespace) Draw(rand io.Reader) (ID, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	size := ns.max - ns.min + 1
	if int64(len(ns.used)) >= size {
		return "", ErrNamespaceExhausted
	}
	width := big.NewInt(size)
	for {
		off, err := cryptoInt(rand, width)
		if err != nil {
			return "", err
		}
		id := ID(fmt.Sprintf("%s%d", ns.prefix, ns.min+off))
		if _, taken := ns.used[id]; taken {
			continue
		}
		ns.used[id] = struct{}{}
		return id, nil
	}
}

func cryptoInt(rand io.Reader, max *big.Int) (int64, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(rand, buf); err != nil {
		return 0, err
	}
	v := new(big.Int).SetBytes(buf)
	return v.Mod(v, max).Int64(), nil
}
