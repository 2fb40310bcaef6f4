package webd

import (
	"encoding/json"
	"errors"

	"github.com/olahol/melody"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/types/fix"
)

type websocketAction string

const (
	websocketActionStatus  websocketAction = "status"
	websocketActionEvent   websocketAction = "event"
	websocketActionCadence websocketAction = "cadence"
)

// broadcast is the websocket message envelope. Exactly one payload is set, per Action.
type broadcast struct {
	Action  websocketAction `json:"action"`
	Event   *events.Event   `json:"event,omitempty"`
	Cadence *motion.Cadence `json:"cadence,omitempty"`
	Session *motion.Session `json:"session,omitempty"`
	Last    *fix.Fix        `json:"last,omitempty"`
}

// initMelody sets up the websocket handler.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	// New clients get the current session and cadence, so a device
	// connecting mid-trip knows how often to sample.
	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		s.logger.Info("Websocket connected", "remote", sess.Request.RemoteAddr)
		st := s.Tracker.Status()
		hello := broadcast{
			Action:  websocketActionStatus,
			Session: &st.Session,
			Cadence: &st.Cadence,
		}
		if s.LastKnown != nil {
			if f, ok := s.LastKnown.Get(s.Tracker.Name); ok {
				hello.Last = &f
			}
		}
		b, err := json.Marshal(hello)
		if err != nil {
			s.logger.Error("Failed to marshal websocket status", "error", err)
			return
		}
		if err := sess.Write(b); err != nil {
			s.logger.Warn("Failed to write websocket status", "error", err)
		}
	})

	// Clients don't talk back. Log and drop.
	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "remote", sess.Request.RemoteAddr, "msg", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		s.logger.Info("Websocket disconnected", "remote", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, e error) {
		s.logger.Warn("Websocket error", "error", e, "remote", sess.Request.RemoteAddr)
	})
}

func (s *WebDaemon) broadcast(bc broadcast) error {
	if s.melodyInstance.Len() == 0 {
		return nil
	}
	b, err := json.Marshal(bc)
	if err != nil {
		return err
	}
	if err := s.melodyInstance.Broadcast(b); err != nil && !errors.Is(err, melody.ErrClosed) {
		return err
	}
	return nil
}
