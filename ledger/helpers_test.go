package ledger

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"

	"github.com/cloudx-io/sealedbid/core"
)

const (
	testStart    int64  = 1_700_000_000
	testDuration int64  = 3600
	testRent     uint64 = 50
	testFunds    uint64 = 10_000
)

var (
	testAuthority = IdentityFromName("house")
	testAlice     = IdentityFromName("alice")
	testBob       = IdentityFromName("bob")
)

type testEnv struct {
	ledger *Ledger
	domain *MemoryDomain
	clock  *ManualClock
	key    *rsa.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.NoError(t, err)
	domain := NewMemoryDomain(key)
	return newTestEnvWithDomain(t, domain, key)
}

func newTestEnvWithDomain(t *testing.T, domain PrivateDomain, key *rsa.PrivateKey) *testEnv {
	t.Helper()
	store := newTestStore(t)
	clock := NewManualClock(testStart)
	l := New(store, domain, clock, Options{BidRent: testRent, NotificationBuffer: 64})

	ctx := context.Background()
	for _, owner := range []core.Pubkey{testAlice, testBob} {
		assert.NoError(t, l.Airdrop(ctx, owner, testFunds))
	}

	md, _ := domain.(*MemoryDomain)
	return &testEnv{ledger: l, domain: md, clock: clock, key: key}
}

// createAuction opens auction 1 with min bid 100 and increment 10.
func (e *testEnv) createAuction(t *testing.T) core.Pubkey {
	t.Helper()
	address, err := e.ledger.CreateAuction(context.Background(), testAuthority, 1, 100, 10, testDuration)
	assert.NoError(t, err)
	return address
}

// activeBid registers and delegates bidder's entry.
func (e *testEnv) activeBid(t *testing.T, auction, bidder core.Pubkey) {
	t.Helper()
	ctx := context.Background()
	_, err := e.ledger.InitializeSealedBid(ctx, bidder, auction)
	assert.NoError(t, err)
	assert.NoError(t, e.ledger.DelegateBid(ctx, bidder, auction))
}

func (e *testEnv) balance(t *testing.T, owner core.Pubkey) uint64 {
	t.Helper()
	balance, err := e.ledger.Balance(owner)
	assert.NoError(t, err)
	return balance
}

func (e *testEnv) vaultBalance(t *testing.T, auction core.Pubkey) uint64 {
	t.Helper()
	vault, err := e.ledger.Vault(auction)
	assert.NoError(t, err)
	return vault.Balance
}

func checkErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("expected error %v, got %v", target, err)
	}
}
