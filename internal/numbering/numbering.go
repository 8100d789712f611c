// Package numbering assigns human-readable document numbers of the form
// PREFIX-YYYYMM-SEQ, where SEQ restarts at 001 whenever the month changes.
//
// Next is only safe when called inside Serialize for the same tenant and kind:
// the sequence is derived from the last stored number, so two unserialized
// callers can compute the same value.
package numbering

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"sme-docengine/internal/models"
)

var prefixes = map[models.Kind]string{
	models.KindQuote:         "QTN",
	models.KindPurchaseOrder: "PO",
	models.KindInvoice:       "INV",
}

// Store reads the most recently created number for a tenant and kind.
type Store interface {
	LastNumber(ctx context.Context, tenantID uint, kind models.Kind) (string, bool, error)
}

type key struct {
	tenantID uint
	kind     models.Kind
}

// Authority hands out numbers and owns one lock per tenant and kind.
type Authority struct {
	mu    sync.Mutex
	locks map[key]*sync.Mutex
}

func NewAuthority() *Authority {
	return &Authority{locks: make(map[key]*sync.Mutex)}
}

func (a *Authority) lockFor(tenantID uint, kind models.Kind) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key{tenantID: tenantID, kind: kind}
	l, ok := a.locks[k]
	if !ok {
		l = &sync.Mutex{}
		a.locks[k] = l
	}
	return l
}

// Serialize runs fn while holding the lock for tenant and kind. fn should
// compute the number and persist the document before returning.
func (a *Authority) Serialize(tenantID uint, kind models.Kind, fn func() error) error {
	l := a.lockFor(tenantID, kind)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// Next computes the number following the last stored one for asOf's month.
func (a *Authority) Next(ctx context.Context, store Store, tenantID uint, kind models.Kind, asOf time.Time) (string, error) {
	prefix, err := Prefix(kind, asOf)
	if err != nil {
		return "", err
	}

	last, ok, err := store.LastNumber(ctx, tenantID, kind)
	if err != nil {
		return "", fmt.Errorf("numbering: read last %s number: %w", kind, err)
	}

	seq := 1
	if ok {
		if prev, matched := Sequence(last, prefix); matched {
			seq = prev + 1
		}
	}
	return Format(prefix, seq), nil
}

// Prefix returns e.g. "INV-202610" for kind and the month of asOf.
func Prefix(kind models.Kind, asOf time.Time) (string, error) {
	p, ok := prefixes[kind]
	if !ok {
		return "", fmt.Errorf("numbering: unknown document kind %q", kind)
	}
	return fmt.Sprintf("%s-%04d%02d", p, asOf.Year(), int(asOf.Month())), nil
}

// Format joins prefix and sequence, padding the sequence to three digits.
func Format(prefix string, seq int) string {
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

// Sequence parses the trailing sequence of number when it carries prefix.
func Sequence(number, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(number, prefix+"-")
	if !ok || rest == "" {
		return 0, false
	}
	seq, err := strconv.Atoi(rest)
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}
