package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/internal/dispatch"
	"github.com/myanride/dispatch/pkg/logger"
)

const (
	subjectOfferPrefix  = "drivers.offers."
	subjectRevokePrefix = "drivers.revocations."
)

type offerMessage struct {
	RideID    uuid.UUID `json:"ride_id"`
	DriverID  uuid.UUID `json:"driver_id"`
	Round     int       `json:"round"`
	ExpiresAt time.Time `json:"expires_at"`
}

type revocationMessage struct {
	RideID   uuid.UUID `json:"ride_id"`
	DriverID uuid.UUID `json:"driver_id"`
	Reason   string    `json:"reason"`
}

// Publisher pushes dispatch events onto NATS subjects. Offers and
// revocations go to per-driver subjects; terminal outcomes go to a single
// subject downstream consumers fan out from. Publishing is best effort.
type Publisher struct {
	conn            *nats.Conn
	terminalSubject string
}

func NewPublisher(conn *nats.Conn, terminalSubject string) *Publisher {
	return &Publisher{conn: conn, terminalSubject: terminalSubject}
}

func (p *Publisher) publish(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Get().Error("Failed to marshal notification", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		logger.Get().Error("Failed to publish notification", zap.String("subject", subject), zap.Error(err))
	}
}

func (p *Publisher) NotifyOffer(ctx context.Context, offer dispatch.Offer) {
	p.publish(subjectOfferPrefix+offer.Driver.DriverID.String(), offerMessage{
		RideID:    offer.RideID,
		DriverID:  offer.Driver.DriverID,
		Round:     offer.Round,
		ExpiresAt: offer.ExpiresAt,
	})
}

func (p *Publisher) NotifyOfferRevoked(ctx context.Context, rideID, driverID uuid.UUID, reason string) {
	p.publish(subjectRevokePrefix+driverID.String(), revocationMessage{
		RideID:   rideID,
		DriverID: driverID,
		Reason:   reason,
	})
}

func (p *Publisher) NotifyTerminal(ctx context.Context, outcome dispatch.Outcome) {
	p.publish(p.terminalSubject, outcome)
}
