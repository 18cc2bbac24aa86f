package hub

import (
	"encoding/json"
	"time"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/bus"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/sirupsen/logrus"
)

// Inbound frame types sent by the hub.
const (
	FramePairingRequested    = "pairing_requested"
	FramePairingResolved     = "pairing_resolved"
	FrameSyncshellVisibility = "syncshell_visibility"
	FrameResync              = "resync"
)

// InboundFrame is the wire envelope of a hub-to-client message. Which fields
// are meaningful depends on Type.
type InboundFrame struct {
	Type string `json:"type"`

	UID   string `json:"uid,omitempty"`
	Alias string `json:"alias,omitempty"`

	GroupID string `json:"group_id,omitempty"`
	Name    string `json:"name,omitempty"`
	Visible bool   `json:"visible,omitempty"`

	Kind   string `json:"kind,omitempty"`
	Handle string `json:"handle,omitempty"`

	At time.Time `json:"at,omitempty"`
}

// FrameRouter decodes inbound hub frames and republishes them as typed bus
// messages.
type FrameRouter struct {
	bus    bus.Publisher
	logger *logrus.Entry
}

// NewFrameRouter creates a router publishing on b.
func NewFrameRouter(b bus.Publisher, logger *logrus.Entry) *FrameRouter {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &FrameRouter{bus: b, logger: logger}
}

// Dispatch handles one frame and logs anything it cannot route. It has the
// signature of WebsocketConnector.OnMessage.
func (r *FrameRouter) Dispatch(data []byte) {
	if err := r.Route(data); err != nil {
		r.logger.WithError(err).Warn("Dropped inbound hub frame")
	}
}

// Route decodes data and publishes the matching message. Frames of an unknown
// type are ignored so newer hubs can add message types.
func (r *FrameRouter) Route(data []byte) error {
	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "malformed hub frame")
	}

	var msg any
	switch f.Type {
	case FramePairingRequested:
		if f.UID == "" {
			return missingField(f.Type, "uid")
		}
		msg = models.PairingRequested{UID: f.UID, Alias: f.Alias, At: f.At}
	case FramePairingResolved:
		if f.UID == "" {
			return missingField(f.Type, "uid")
		}
		msg = models.PairingResolved{UID: f.UID}
	case FrameSyncshellVisibility:
		if f.GroupID == "" {
			return missingField(f.Type, "group_id")
		}
		msg = models.SyncshellVisibilityChanged{GroupID: f.GroupID, Name: f.Name, Visible: f.Visible, At: f.At}
	case FrameResync:
		kind, err := models.ParseChangeKind(f.Kind)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "bad resync kind")
		}
		msg = models.ChangeObserved{Kind: kind, Handle: f.Handle}
	default:
		r.logger.WithField("type", f.Type).Debug("Ignoring hub frame of unknown type")
		return nil
	}

	r.bus.Publish(msg)
	return nil
}

func missingField(frameType, field string) error {
	return errors.New(errors.ErrCodeInvalidInput, "hub frame is missing a field").
		WithDetail("type", frameType).
		WithDetail("field", field)
}
