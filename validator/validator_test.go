package validator

import (
	"context"
	"crypto/ed25519"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/raddi-network/raddi/coordinator"
	"github.com/raddi-network/raddi/crypto"
	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/proof"
	"github.com/raddi-network/raddi/raddi"
)

func testNode(t *testing.T) *coordinator.Node {
	t.Helper()
	root := t.TempDir()
	database, err := db.Open(filepath.Join(root, "db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	n, err := coordinator.NewNode(coordinator.DefaultConfig(), database, filepath.Join(root, "db"))
	require.NoError(t, err)
	return n
}

// bogusProof returns a minimum-length proof block that satisfies parse's
// framing check (NUL byte + valid header + correctly-sized nonce payload)
// without being a genuine Cuckoo Cycle solution. It's only usable in tests
// that reject an entry before proof-of-work is ever checked.
func bogusProof() (proof.Header, []byte) {
	hdr := proof.Header{Length: proof.MinLength, Complexity: proof.MinComplexity, Algorithm: proof.CuckooCycle}
	return hdr, make([]byte, 4*proof.MinLength)
}

func assemble(e raddi.Entry, realContent []byte, hdr proof.Header, proofBytes []byte) []byte {
	hdrBytes := proof.EncodeHeader(hdr)
	content := append(append([]byte{}, realContent...), hdrBytes[:]...)
	content = append(content, proofBytes...)
	buf := append([]byte{}, e.ID.MarshalBinary()...)
	buf = append(buf, e.Parent.MarshalBinary()...)
	buf = append(buf, e.Signature[:]...)
	buf = append(buf, content...)
	return buf
}

func TestIsRequestSizeThreshold(t *testing.T) {
	require.True(t, IsRequest(make([]byte, MinEntrySize-1)))
	require.False(t, IsRequest(make([]byte, MinEntrySize)))
}

func TestProcessRejectsShortPayload(t *testing.T) {
	n := testNode(t)
	v := New(n)
	_, err := v.Process(make([]byte, 10))
	require.ErrorIs(t, err, ErrTooShortForEntry)
}

func TestProcessRejectsBadSignatureBeforeCheckingProof(t *testing.T) {
	n := testNode(t)
	v := New(n)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	now := raddi.Now()
	id := raddi.EID{Timestamp: now}
	identity := raddi.Identity{PublicKey: pub, Name: "alice"}
	content := identity.Encode()

	e := raddi.Entry{ID: id, Parent: id}
	e.Sign(priv, nil)
	// flip a signature byte so Verify fails without ever reaching PoW.
	e.Signature[0] ^= 0xFF

	hdr, proofBytes := bogusProof()
	payload := assemble(e, content, hdr, proofBytes)

	outcome, err := v.Process(payload)
	require.Error(t, err)
	require.Equal(t, OutcomeRejected, outcome)
}

func TestProcessRejectsSkewedTimestamp(t *testing.T) {
	n := testNode(t)
	v := New(n)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	future := raddi.Now() + raddi.Timestamp(raddi.MaxEntrySkew) + 3600
	id := raddi.EID{Timestamp: future}
	identity := raddi.Identity{PublicKey: pub, Name: "bob"}
	content := identity.Encode()

	e := raddi.Entry{ID: id, Parent: id}
	e.Sign(priv, nil)

	hdr, proofBytes := bogusProof()
	payload := assemble(e, content, hdr, proofBytes)

	outcome, err := v.Process(payload)
	require.ErrorIs(t, err, raddi.ErrSkewedTimestamp)
	require.Equal(t, OutcomeRejected, outcome)
}

// TestProcessAcceptsGenuineIdentityAnnouncement mines an actual Cuckoo Cycle
// proof at the minimum complexity, following the same budget/skip idiom the
// proof package's own tests use: graph search time varies by seed, so a
// miss within budget skips rather than fails.
func TestProcessAcceptsGenuineIdentityAnnouncement(t *testing.T) {
	if testing.Short() {
		t.Skip("proof-of-work mining is slow; skipped under -short")
	}

	n := testNode(t)
	v := New(n)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	now := raddi.Now()
	id := raddi.EID{Timestamp: now}
	identity := raddi.Identity{PublicKey: pub, Name: "carol"}
	content := identity.Encode()

	e := raddi.Entry{ID: id, Parent: id, Content: content}
	e.Sign(priv, nil)

	seed := raddi.PoWSeed(&e, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	hdr, cycle, ok := proof.Solve(ctx, seed, raddi.MinAnnouncementPoWComplexity, 25*time.Second)
	if !ok {
		t.Skip("no cycle found within budget for this seed at minimum complexity")
	}

	payload := assemble(e, content, hdr, cycle)
	outcome, err := v.Process(payload)
	require.NoError(t, err)
	require.Equal(t, OutcomeInserted, outcome)

	iid := raddi.IID{Timestamp: now, Nonce: crypto.IdentityNonce(uint32(now), pub)}
	row, ok := n.Database().Identities.Find(func(r db.IdentityRow) bool { return r.ID == iid })
	require.True(t, ok)
	require.Equal(t, iid, row.ID)
}

// mineAnnouncement signs e (an identity or channel announcement, id==parent)
// and mines a genuine minimum-complexity proof for it, skipping the test if
// no cycle turns up within budget for this seed — the same idiom
// TestProcessAcceptsGenuineIdentityAnnouncement uses.
func mineAnnouncement(t *testing.T, e raddi.Entry, key ed25519.PrivateKey) []byte {
	t.Helper()
	e.Sign(key, nil)
	seed := raddi.PoWSeed(&e, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	hdr, cycle, ok := proof.Solve(ctx, seed, raddi.MinAnnouncementPoWComplexity, 25*time.Second)
	if !ok {
		t.Skip("no cycle found within budget for this seed at minimum complexity")
	}
	return assemble(e, e.Content, hdr, cycle)
}

// mineOrdinary signs e against parentEntry (the raw wire bytes of its
// parent) and mines a genuine proof meeting the thread-opening floor.
func mineOrdinary(t *testing.T, e raddi.Entry, key ed25519.PrivateKey, parentEntry []byte, opensThread bool) []byte {
	t.Helper()
	e.Sign(key, parentEntry)
	seed := raddi.PoWSeed(&e, nil)
	_, minComplexity := e.DefaultRequirements(opensThread)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	hdr, cycle, ok := proof.Solve(ctx, seed, minComplexity, 25*time.Second)
	if !ok {
		t.Skip("no cycle found within budget for this seed at minimum complexity")
	}
	return assemble(e, e.Content, hdr, cycle)
}

// TestAssessOrdinarySkipsInsertWithoutLocalInterest mines a genuine
// identity, channel, and a comment opening a thread under that channel, then
// checks that a node with no matching subscription and StoreEverything off
// relays the comment without storing it, while a node subscribed to the
// channel stores it.
func TestAssessOrdinarySkipsInsertWithoutLocalInterest(t *testing.T) {
	if testing.Short() {
		t.Skip("proof-of-work mining is slow; skipped under -short")
	}

	ownerPub, ownerPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	identityTS := raddi.Now()
	identityID := raddi.EID{Timestamp: identityTS}
	identity := raddi.Identity{PublicKey: ownerPub, Name: "dave"}
	identityEntry := raddi.Entry{ID: identityID, Parent: identityID, Content: identity.Encode()}
	identityPayload := mineAnnouncement(t, identityEntry, ownerPriv)

	ownerIID := raddi.IID{Timestamp: identityTS, Nonce: crypto.IdentityNonce(uint32(identityTS), ownerPub)}
	channelOwnerEID := raddi.EID{Timestamp: raddi.Now(), Identity: ownerIID}
	channel := raddi.Channel{Name: "general"}
	channelEntry := raddi.Entry{ID: channelOwnerEID, Parent: channelOwnerEID, Content: channel.Encode()}
	channelPayload := mineAnnouncement(t, channelEntry, ownerPriv)

	commentPub, commentPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	commentIdentityTS := raddi.Now()
	commentIdentityID := raddi.EID{Timestamp: commentIdentityTS}
	commentIdentity := raddi.Identity{PublicKey: commentPub, Name: "erin"}
	commentIdentityEntry := raddi.Entry{ID: commentIdentityID, Parent: commentIdentityID, Content: commentIdentity.Encode()}
	commentIdentityPayload := mineAnnouncement(t, commentIdentityEntry, commentPriv)
	commentIID := raddi.IID{Timestamp: commentIdentityTS, Nonce: crypto.IdentityNonce(uint32(commentIdentityTS), commentPub)}

	commentID := raddi.EID{Timestamp: raddi.Now(), Identity: commentIID}
	commentEntry := raddi.Entry{ID: commentID, Parent: channelOwnerEID, Content: []byte("hello")}
	commentPayload := mineOrdinary(t, commentEntry, commentPriv, channelPayload, true)

	process := func(n *coordinator.Node, payload []byte) Outcome {
		outcome, err := New(n).Process(payload)
		require.NoError(t, err)
		return outcome
	}

	t.Run("uninterested node relays without storing", func(t *testing.T) {
		n := testNode(t)
		require.Equal(t, OutcomeInserted, process(n, identityPayload))
		require.Equal(t, OutcomeInserted, process(n, channelPayload))
		require.Equal(t, OutcomeInserted, process(n, commentIdentityPayload))
		require.Equal(t, OutcomeRelayed, process(n, commentPayload))

		_, found := n.Database().Data.Find(func(r db.DataRow) bool { return r.ID == commentID })
		require.False(t, found, "a relayed-only entry must not be persisted")
	})

	t.Run("subscribed node stores", func(t *testing.T) {
		n := testNode(t)
		require.Equal(t, OutcomeInserted, process(n, identityPayload))
		require.Equal(t, OutcomeInserted, process(n, channelPayload))
		require.Equal(t, OutcomeInserted, process(n, commentIdentityPayload))

		subs, err := n.Retained.For(uuid.New())
		require.NoError(t, err)
		subs.Subscribe(channelOwnerEID)

		require.Equal(t, OutcomeInserted, process(n, commentPayload))

		_, found := n.Database().Data.Find(func(r db.DataRow) bool { return r.ID == commentID })
		require.True(t, found, "a locally-interested entry must be persisted")
	})
}
