package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/totegamma/greenledger"
	"github.com/totegamma/greenledger/internal/domain"
)

type mockStore struct {
	data     map[string][]byte
	extended []domain.Lifetime
	restored int
	failSet  error
	// conflict, when set, runs once after the first attempt of an Update and
	// forces fn to run again, the way optimistic stores retry.
	conflict func()
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string][]byte{}}
}

type mockTxn struct {
	store  *mockStore
	writes map[string][]byte
	extend *domain.Lifetime
}

func (t *mockTxn) Get(key string) ([]byte, bool, error) {
	if v, ok := t.writes[key]; ok {
		return v, true, nil
	}
	v, ok := t.store.data[key]
	return v, ok, nil
}

func (t *mockTxn) Set(key string, value []byte) { t.writes[key] = value }

func (t *mockTxn) Extend(l domain.Lifetime) { t.extend = &l }

func (m *mockStore) View(ctx context.Context, fn func(tx Reader) error) error {
	return fn(&mockTxn{store: m, writes: map[string][]byte{}})
}

func (m *mockStore) Update(ctx context.Context, fn func(tx Txn) error) error {
	tx := &mockTxn{store: m, writes: map[string][]byte{}}
	if err := fn(tx); err != nil {
		return err
	}
	if m.conflict != nil {
		conflict := m.conflict
		m.conflict = nil
		conflict()
		return m.Update(ctx, fn)
	}
	if m.failSet != nil {
		return m.failSet
	}
	for k, v := range tx.writes {
		m.data[k] = v
	}
	if tx.extend != nil {
		m.extended = append(m.extended, *tx.extend)
	}
	return nil
}

func (m *mockStore) Restore(ctx context.Context, l domain.Lifetime) error {
	m.restored++
	return nil
}

type mockClock struct{ now uint64 }

func (c *mockClock) Now() uint64 { return c.now }

type mockSink struct {
	events []greenledger.Event
}

func (s *mockSink) Emit(ctx context.Context, ev greenledger.Event) {
	s.events = append(s.events, ev)
}

func (s *mockSink) types() []greenledger.EventType {
	out := make([]greenledger.EventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

func newCertificateRegistry(store Store, sink EventSink) *RegistryUsecase[domain.TreeCertificate] {
	return NewRegistryUsecase[domain.TreeCertificate](
		domain.CertificateRegistry, store, &mockClock{now: 1700000000}, sink, domain.DefaultLifetime,
	)
}

func TestRegistryCreateAllocatesSequentialIDs(t *testing.T) {
	store := newMockStore()
	uc := newCertificateRegistry(store, &mockSink{})
	ctx := context.Background()

	for want := uint64(1); want <= 5; want++ {
		id, err := uc.Create(ctx, "alice", domain.TreeCertificate{Species: "Oak", Location: "Riverside"})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if id != want {
			t.Fatalf("expected id %d got %d", want, id)
		}
	}

	stats, err := uc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalRecords != 5 || stats.VerifiedRecords != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(store.extended) != 5 || store.extended[0] != domain.DefaultLifetime {
		t.Fatalf("expected every create to extend the lifetime, got %v", store.extended)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	sink := &mockSink{}
	uc := newCertificateRegistry(newMockStore(), sink)
	ctx := context.Background()

	id, err := uc.Create(ctx, "Alice", domain.TreeCertificate{Species: "Oak", Location: "Riverside"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1 got %d", id)
	}

	rec, err := uc.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.Owner != "Alice" || rec.Payload.Species != "Oak" || rec.Payload.Location != "Riverside" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Verified {
		t.Fatalf("new record must not be verified")
	}
	if rec.CreatedAt != 1700000000 {
		t.Fatalf("expected clock timestamp, got %d", rec.CreatedAt)
	}

	if err := uc.Verify(ctx, 1); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	rec, err = uc.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !rec.Verified {
		t.Fatalf("expected record to be verified")
	}
	if rec.Payload.Species != "Oak" || rec.Owner != "Alice" {
		t.Fatalf("verify must not touch metadata: %+v", rec)
	}

	stats, _ := uc.Stats(ctx)
	if stats != (domain.Stats{TotalRecords: 1, VerifiedRecords: 1, CategoryCount: 1}) {
		t.Fatalf("unexpected stats %+v", stats)
	}

	got := sink.types()
	want := []greenledger.EventType{greenledger.EventCreated, greenledger.EventVerified}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected events %v got %v", want, got)
	}
	if sink.events[0].URI != "gl://certificates/1" {
		t.Fatalf("unexpected event uri %s", sink.events[0].URI)
	}
}

func TestRegistryVerifyIsIdempotent(t *testing.T) {
	store := newMockStore()
	sink := &mockSink{}
	uc := newCertificateRegistry(store, sink)
	ctx := context.Background()

	id, _ := uc.Create(ctx, "bob", domain.TreeCertificate{Species: "Pine"})

	if err := uc.Verify(ctx, id); err != nil {
		t.Fatalf("first verify failed: %v", err)
	}
	writes := len(store.extended)
	if err := uc.Verify(ctx, id); err != nil {
		t.Fatalf("second verify failed: %v", err)
	}

	stats, _ := uc.Stats(ctx)
	if stats.VerifiedRecords != 1 {
		t.Fatalf("expected 1 verified record got %d", stats.VerifiedRecords)
	}
	if len(store.extended) != writes {
		t.Fatalf("already verified record must not be written again")
	}
	if last := sink.events[len(sink.events)-1]; last.Type != greenledger.EventAlreadyVerified {
		t.Fatalf("expected already-verified event got %s", last.Type)
	}
}

func TestRegistryVerifyRetriedAfterConcurrentVerify(t *testing.T) {
	store := newMockStore()
	sink := &mockSink{}
	uc := newCertificateRegistry(store, sink)
	ctx := context.Background()

	id, _ := uc.Create(ctx, "bob", domain.TreeCertificate{Species: "Pine"})

	// another writer verifies the record between our first attempt and the retry
	store.conflict = func() {
		if err := newCertificateRegistry(store, nil).Verify(ctx, id); err != nil {
			t.Fatalf("concurrent verify failed: %v", err)
		}
	}
	if err := uc.Verify(ctx, id); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if last := sink.events[len(sink.events)-1]; last.Type != greenledger.EventAlreadyVerified {
		t.Fatalf("expected already-verified event got %s", last.Type)
	}
	stats, _ := uc.Stats(ctx)
	if stats.VerifiedRecords != 1 {
		t.Fatalf("expected 1 verified record got %d", stats.VerifiedRecords)
	}
}

func TestRegistryVerifyUnknownID(t *testing.T) {
	sink := &mockSink{}
	uc := newCertificateRegistry(newMockStore(), sink)
	ctx := context.Background()

	uc.Create(ctx, "carol", domain.TreeCertificate{Species: "Elm"})
	before, _ := uc.Stats(ctx)

	for _, id := range []uint64{0, 2, math.MaxUint64} {
		err := uc.Verify(ctx, id)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("verify(%d): expected ErrNotFound got %v", id, err)
		}
	}

	after, _ := uc.Stats(ctx)
	if before != after {
		t.Fatalf("stats changed on failed verify: %+v -> %+v", before, after)
	}
	if last := sink.events[len(sink.events)-1]; last.Type != greenledger.EventNotFound {
		t.Fatalf("expected not-found event got %s", last.Type)
	}
}

func TestRegistryGetReturnsSentinel(t *testing.T) {
	uc := newCertificateRegistry(newMockStore(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		uc.Create(ctx, "dave", domain.TreeCertificate{Species: "Birch", Location: "Hill"})
	}
	if err := uc.Verify(ctx, 2); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	stats, _ := uc.Stats(ctx)
	if stats.TotalRecords != 3 || stats.VerifiedRecords != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	rec, err := uc.Get(ctx, 4)
	if err != nil {
		t.Fatalf("get must not fail for absent ids: %v", err)
	}
	if rec.Found() || rec.ID != 0 || rec.Verified || rec.CreatedAt != 0 {
		t.Fatalf("expected sentinel got %+v", rec)
	}
	if rec.Payload.Species != domain.NotFoundMarker || rec.Payload.Location != domain.NotFoundMarker {
		t.Fatalf("sentinel metadata must be the not-found marker: %+v", rec.Payload)
	}
	if rec.Owner != greenledger.ZeroAddress {
		t.Fatalf("sentinel owner must be the zero address, got %s", rec.Owner)
	}

	_, found, err := uc.Lookup(ctx, 4)
	if err != nil || found {
		t.Fatalf("lookup of absent id: found=%v err=%v", found, err)
	}
	rec, found, err = uc.Lookup(ctx, 1)
	if err != nil || !found || rec.ID != 1 || rec.Verified {
		t.Fatalf("lookup of unverified id: %+v found=%v err=%v", rec, found, err)
	}
}

func TestRegistryCreateOverflow(t *testing.T) {
	store := newMockStore()
	uc := newCertificateRegistry(store, nil)
	ctx := context.Background()

	exhausted, _ := json.Marshal(uint64(math.MaxUint64))
	store.data[counterKey] = exhausted
	stats, _ := json.Marshal(domain.Stats{TotalRecords: 7})
	store.data[statsKey] = stats

	_, err := uc.Create(ctx, "erin", domain.TreeCertificate{Species: "Ash"})
	if !errors.Is(err, domain.ErrOverflow) {
		t.Fatalf("expected ErrOverflow got %v", err)
	}

	if len(store.data) != 2 {
		t.Fatalf("overflow must not write anything, store has %d keys", len(store.data))
	}
	got, _ := uc.Stats(ctx)
	if got.TotalRecords != 7 {
		t.Fatalf("stats changed on overflow: %+v", got)
	}
}

func TestRegistryCreateFailureLeavesNoState(t *testing.T) {
	store := newMockStore()
	store.failSet = errors.New("disk full")
	sink := &mockSink{}
	uc := newCertificateRegistry(store, sink)

	_, err := uc.Create(context.Background(), "frank", domain.TreeCertificate{Species: "Yew"})
	if err == nil {
		t.Fatalf("expected store failure to surface")
	}
	if len(store.data) != 0 {
		t.Fatalf("failed commit must not leave data behind")
	}
	if len(sink.events) != 0 {
		t.Fatalf("failed create must not emit events")
	}
}

func TestRegistryCountsDistinctCategories(t *testing.T) {
	uc := NewRegistryUsecase[domain.ArtPiece](
		domain.ArtPieceRegistry, newMockStore(), &mockClock{}, nil, domain.DefaultLifetime,
	)
	ctx := context.Background()

	pieces := []domain.ArtPiece{
		{Title: "Gull", Materials: "driftwood"},
		{Title: "Wave", Materials: "bottle caps"},
		{Title: "Reef", Materials: "driftwood"},
		{Title: "Untitled", Materials: ""},
	}
	for _, p := range pieces {
		if _, err := uc.Create(ctx, "gina", p); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	stats, _ := uc.Stats(ctx)
	if stats.TotalRecords != 4 || stats.CategoryCount != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRegistryAcceptsEmptyMetadata(t *testing.T) {
	uc := newCertificateRegistry(newMockStore(), nil)
	ctx := context.Background()

	id, err := uc.Create(ctx, "", domain.TreeCertificate{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	rec, _ := uc.Get(ctx, id)
	if !rec.Found() || rec.Payload.Species != "" || rec.Owner != "" {
		t.Fatalf("empty metadata must be stored verbatim: %+v", rec)
	}
}

func TestRegistryStatsDefaultsToZero(t *testing.T) {
	uc := newCertificateRegistry(newMockStore(), nil)
	stats, err := uc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats != (domain.Stats{}) {
		t.Fatalf("expected zero stats got %+v", stats)
	}
}

func TestRegistryRestore(t *testing.T) {
	store := newMockStore()
	sink := &mockSink{}
	uc := newCertificateRegistry(store, sink)

	if err := uc.Restore(context.Background()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if store.restored != 1 {
		t.Fatalf("expected store restore to be called")
	}
	if sink.events[0].Type != greenledger.EventRestored {
		t.Fatalf("expected restored event got %s", sink.events[0].Type)
	}
}
