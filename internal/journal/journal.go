// Package journal implements the wire message shapes of spec.md §6: one
// point message per entity kind, plus path-carrying and path-less relation
// messages, each keyed by a SHA-1 digest (of kind and id for point
// messages; of kind, endpoints and path for relations) so a journal
// consumer can dedupe retries. Only encode/decode/replay are in scope — the
// Kafka/RabbitMQ transport that would carry these in production is
// explicitly out of scope (spec.md §1, SPEC_FULL.md §5).
package journal

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"time"

	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
)

// Kind discriminates a Message's payload.
type Kind string

const (
	KindContent   Kind = "content"
	KindDirectory Kind = "directory"
	KindRevision  Kind = "revision"
	KindOrigin    Kind = "origin"
	KindRelation  Kind = "relation"
)

// Message is the envelope every journal entry shares: a Kind, a
// deterministic Key (for consumer-side dedup), and a JSON payload specific
// to that kind.
type Message struct {
	Kind    Kind            `json:"kind"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

type contentPayload struct {
	ID   string `json:"id"`
	Date string `json:"date"` // RFC3339
}

type directoryPayload struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Flat bool   `json:"flat"`
}

type revisionPayload struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Origin string `json:"origin,omitempty"`
}

type originPayload struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type relationPayload struct {
	Kind model.RelationKind `json:"relation_kind"`
	Src  string             `json:"src"`
	Dst  string             `json:"dst"`
	Path string             `json:"path,omitempty"`
}

// MarshalContent encodes a content point message.
func MarshalContent(id model.ID, date time.Time) (Message, error) {
	return marshal(KindContent, keyOf(KindContent, id.String()), contentPayload{
		ID: id.String(), Date: formatTime(date),
	})
}

// MarshalDirectory encodes a directory point message.
func MarshalDirectory(d model.Directory) (Message, error) {
	return marshal(KindDirectory, keyOf(KindDirectory, d.ID.String()), directoryPayload{
		ID: d.ID.String(), Date: formatTime(d.Date), Flat: d.Flat,
	})
}

// MarshalRevision encodes a revision point message.
func MarshalRevision(r model.Revision) (Message, error) {
	origin := ""
	if !r.Origin.IsZero() {
		origin = r.Origin.String()
	}
	return marshal(KindRevision, keyOf(KindRevision, r.ID.String()), revisionPayload{
		ID: r.ID.String(), Date: formatTime(r.Date), Origin: origin,
	})
}

// MarshalOrigin encodes an origin point message.
func MarshalOrigin(o model.Origin) (Message, error) {
	return marshal(KindOrigin, keyOf(KindOrigin, o.ID.String()), originPayload{
		ID: o.ID.String(), URL: o.URL,
	})
}

// MarshalRelation encodes a relation message, keyed by the SHA-1 of
// kind⧺src⧺dst⧺path (the kind prefix keeps equal edges of different
// relation kinds apart, since they share one envelope) so that retried
// relation inserts
// dedupe on the consumer side regardless of the backend's own set
// semantics.
func MarshalRelation(kind model.RelationKind, edge model.RelationEdge) (Message, error) {
	key := relationKey(kind, edge)
	return marshal(KindRelation, key, relationPayload{
		Kind: kind, Src: edge.Src.String(), Dst: edge.Dst.String(), Path: string(edge.Path),
	})
}

func relationKey(kind model.RelationKind, edge model.RelationEdge) string {
	h := sha1.New()
	h.Write([]byte(kind))
	h.Write(edge.Src[:])
	h.Write(edge.Dst[:])
	h.Write(edge.Path)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func keyOf(kind Kind, id string) string {
	h := sha1.New()
	h.Write([]byte(kind))
	h.Write([]byte(id))
	return fmt.Sprintf("%x", h.Sum(nil))
}

func marshal(kind Kind, key string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("journal: marshal %s: %w", kind, err)
	}
	return Message{Kind: kind, Key: key, Payload: raw}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Replay applies a decoded Message to store, writing through exactly one
// backend call per message (no cache involved: replay is for journal
// consumers rebuilding or mirroring an index, not for the ingestion hot
// path).
func Replay(ctx context.Context, store storage.Storage, msg Message) error {
	switch msg.Kind {
	case KindContent:
		var p contentPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("journal: replay content: %w", err)
		}
		id, err := model.ParseID(p.ID)
		if err != nil {
			return err
		}
		date, err := parseTime(p.Date)
		if err != nil {
			return err
		}
		_, err = store.ContentSetDate(ctx, map[model.ID]time.Time{id: date})
		return err

	case KindDirectory:
		var p directoryPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("journal: replay directory: %w", err)
		}
		id, err := model.ParseID(p.ID)
		if err != nil {
			return err
		}
		date, err := parseTime(p.Date)
		if err != nil {
			return err
		}
		_, err = store.DirectorySet(ctx, map[model.ID]model.Directory{id: {ID: id, Date: date, Flat: p.Flat}})
		return err

	case KindRevision:
		var p revisionPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("journal: replay revision: %w", err)
		}
		id, err := model.ParseID(p.ID)
		if err != nil {
			return err
		}
		date, err := parseTime(p.Date)
		if err != nil {
			return err
		}
		var origin model.ID
		if p.Origin != "" {
			origin, err = model.ParseID(p.Origin)
			if err != nil {
				return err
			}
		}
		_, err = store.RevisionSet(ctx, map[model.ID]model.Revision{id: {ID: id, Date: date, Origin: origin}})
		return err

	case KindOrigin:
		var p originPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("journal: replay origin: %w", err)
		}
		id, err := model.ParseID(p.ID)
		if err != nil {
			return err
		}
		_, err = store.OriginSet(ctx, map[model.ID]string{id: p.URL})
		return err

	case KindRelation:
		var p relationPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("journal: replay relation: %w", err)
		}
		src, err := model.ParseID(p.Src)
		if err != nil {
			return err
		}
		dst, err := model.ParseID(p.Dst)
		if err != nil {
			return err
		}
		edges := storage.RelationEdgeSet{src: {{Src: src, Dst: dst, Path: []byte(p.Path)}}}
		_, err = store.RelationAdd(ctx, p.Kind, edges)
		return err

	default:
		return fmt.Errorf("journal: unknown message kind %q", msg.Kind)
	}
}
