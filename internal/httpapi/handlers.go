package httpapi

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/chesstour/live-backend/internal/protocol"
	"github.com/chesstour/live-backend/internal/registry"
)

const maxNotifyBody = 32 << 10

// Notify broadcasts a system-originated global message on the recipient's
// user topic. Global topics have no client-side publishers; this is their
// only inlet.
func Notify(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody))
		if err != nil {
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}

		msg, err := protocol.Decode(body)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, protocol.ErrUnknownType) {
				status = http.StatusUnprocessableEntity
			}
			http.Error(w, err.Error(), status)
			return
		}

		var recipient string
		switch m := msg.(type) {
		case protocol.UserNotification:
			recipient = m.RecipientID
		case protocol.RemovedFromClub:
			recipient = m.RecipientID
		case protocol.Error:
			recipient = m.RecipientID
		default:
			http.Error(w, "not a global message", http.StatusUnprocessableEntity)
			return
		}
		if recipient == "" {
			http.Error(w, "missing recipientId", http.StatusUnprocessableEntity)
			return
		}

		payload, err := protocol.Encode(msg)
		if err != nil {
			http.Error(w, "encode failed", http.StatusInternalServerError)
			return
		}
		reg.Inbox() <- registry.Broadcast{Topic: "user:" + recipient, Payload: payload}

		log.Info("global message pushed",
			zap.String("message_type", protocol.TypeOf(msg)),
			zap.String("topic", "user:"+recipient))
		w.WriteHeader(http.StatusAccepted)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
