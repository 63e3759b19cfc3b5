package journal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
	"github.com/swh-go/provenance/internal/storage/memstore"
)

func testID(b byte) model.ID {
	var out model.ID
	out[len(out)-1] = b
	return out
}

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	var out Message
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return out
}

func TestContentMessageRoundTripsThroughReplay(t *testing.T) {
	id := testID(1)
	date := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)

	msg, err := MarshalContent(id, date)
	if err != nil {
		t.Fatalf("MarshalContent: %v", err)
	}
	msg = roundTrip(t, msg)

	store := memstore.New(storage.Flavor{})
	if err := Replay(context.Background(), store, msg); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	got, err := store.ContentGet(context.Background(), []model.ID{id})
	if err != nil {
		t.Fatalf("ContentGet: %v", err)
	}
	if !got[id].Equal(date) {
		t.Errorf("ContentGet = %v, want %v", got[id], date)
	}
}

func TestRelationMessageKeyIsDeterministic(t *testing.T) {
	edge := model.RelationEdge{Src: testID(1), Dst: testID(2), Path: []byte("a/b")}
	m1, err := MarshalRelation(model.CntInDir, edge)
	if err != nil {
		t.Fatalf("MarshalRelation: %v", err)
	}
	m2, err := MarshalRelation(model.CntInDir, edge)
	if err != nil {
		t.Fatalf("MarshalRelation: %v", err)
	}
	if m1.Key != m2.Key {
		t.Errorf("relation key not deterministic: %q vs %q", m1.Key, m2.Key)
	}

	other := model.RelationEdge{Src: testID(1), Dst: testID(2), Path: []byte("a/c")}
	m3, err := MarshalRelation(model.CntInDir, other)
	if err != nil {
		t.Fatalf("MarshalRelation: %v", err)
	}
	if m1.Key == m3.Key {
		t.Error("different paths produced the same relation key")
	}
}

func TestRelationReplayIsIdempotent(t *testing.T) {
	edge := model.RelationEdge{Src: testID(3), Dst: testID(4), Path: []byte("x")}
	msg, err := MarshalRelation(model.DirInRev, edge)
	if err != nil {
		t.Fatalf("MarshalRelation: %v", err)
	}

	store := memstore.New(storage.Flavor{})
	ctx := context.Background()
	if err := Replay(ctx, store, msg); err != nil {
		t.Fatalf("Replay(1): %v", err)
	}
	if err := Replay(ctx, store, msg); err != nil {
		t.Fatalf("Replay(2): %v", err)
	}

	got, err := store.RelationGet(ctx, model.DirInRev, []model.ID{edge.Src}, false)
	if err != nil {
		t.Fatalf("RelationGet: %v", err)
	}
	if len(got[edge.Src]) != 1 {
		t.Errorf("replay was not idempotent: got %d edges", len(got[edge.Src]))
	}
}

func TestRevisionMessageCarriesOptionalOrigin(t *testing.T) {
	rev := model.Revision{ID: testID(5), Date: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), Origin: testID(6)}
	msg, err := MarshalRevision(rev)
	if err != nil {
		t.Fatalf("MarshalRevision: %v", err)
	}

	store := memstore.New(storage.Flavor{})
	ctx := context.Background()
	if err := Replay(ctx, store, msg); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	got, err := store.RevisionGet(ctx, []model.ID{rev.ID})
	if err != nil {
		t.Fatalf("RevisionGet: %v", err)
	}
	if got[rev.ID].Origin != rev.Origin {
		t.Errorf("origin = %v, want %v", got[rev.ID].Origin, rev.Origin)
	}
}
