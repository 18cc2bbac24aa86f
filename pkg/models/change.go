package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ChangeKind identifies which tracked object a change signal belongs to.
// The set is closed; signals of the same kind coalesce into one pending entry.
type ChangeKind int

const (
	KindPlayer ChangeKind = iota
	KindMinionOrMount
	KindPet
	KindCompanion
)

// AllKinds lists every ChangeKind in its stable build order.
var AllKinds = []ChangeKind{KindPlayer, KindMinionOrMount, KindPet, KindCompanion}

var kindNames = map[ChangeKind]string{
	KindPlayer:        "player",
	KindMinionOrMount: "minion_or_mount",
	KindPet:           "pet",
	KindCompanion:     "companion",
}

// String returns the wire name of the kind.
func (k ChangeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the known kinds.
func (k ChangeKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseChangeKind resolves a kind from its wire name. Matching is case-insensitive
// and accepts "minion", "mount" and "minion-or-mount" as aliases.
func ParseChangeKind(s string) (ChangeKind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch norm {
	case "minion", "mount":
		return KindMinionOrMount, nil
	}
	for k, name := range kindNames {
		if name == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown change kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k ChangeKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid change kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ChangeKind) UnmarshalText(text []byte) error {
	parsed, err := ParseChangeKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ChangeSignal is one observed local change. Handle is an opaque reference to
// the changed object, interpreted only by the build function.
type ChangeSignal struct {
	Kind       ChangeKind `json:"kind"`
	Handle     string     `json:"handle"`
	ReceivedAt time.Time  `json:"received_at"`
}

// Snapshot is the canonical result of one build pass.
type Snapshot struct {
	PassID      string          `json:"pass_id"`
	Entries     []ChangeSignal  `json:"entries"`
	Data        json.RawMessage `json:"data,omitempty"`
	Fingerprint string          `json:"fingerprint"`
	BuiltAt     time.Time       `json:"built_at"`
}

// Kinds returns the kinds covered by the snapshot in build order.
func (s *Snapshot) Kinds() []ChangeKind {
	kinds := make([]ChangeKind, len(s.Entries))
	for i, e := range s.Entries {
		kinds[i] = e.Kind
	}
	return kinds
}
