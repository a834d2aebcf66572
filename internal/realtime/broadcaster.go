package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/model"
)

// Broadcaster publishes booking side effects to realtime clients.  Both
// calls are fire and forget; failures are logged, never returned.
type Broadcaster interface {
	SlotChanged(ctx context.Context, slot model.Slot)
	BookingConfirmed(ctx context.Context, userID uint64, notice BookingNotice)
}

const (
	kindSlot = "slot"
	kindUser = "user"
)

// envelope is what travels between instances over Redis and what the
// local hub dispatches.
type envelope struct {
	Kind      string  `json:"kind"`
	Date      string  `json:"date,omitempty"`
	ServiceID uint64  `json:"serviceId,omitempty"`
	UserID    uint64  `json:"userId,omitempty"`
	Message   Message `json:"message"`
}

func slotEnvelope(slot model.Slot, at time.Time) (envelope, error) {
	msg, err := NewMessage(EventSlotUpdate, NewSlotUpdate(slot, at))
	if err != nil {
		return envelope{}, err
	}
	return envelope{Kind: kindSlot, Date: slot.Date(), ServiceID: slot.ServiceID, Message: msg}, nil
}

func userEnvelope(userID uint64, notice BookingNotice) (envelope, error) {
	msg, err := NewMessage(EventBookingConfirmed, notice)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Kind: kindUser, UserID: userID, Message: msg}, nil
}

// LocalBroadcaster delivers straight into this process's hub.
type LocalBroadcaster struct {
	hub *Hub
	log *zap.Logger
	now func() time.Time
}

func NewLocalBroadcaster(hub *Hub, log *zap.Logger) *LocalBroadcaster {
	return &LocalBroadcaster{hub: hub, log: log, now: time.Now}
}

func (b *LocalBroadcaster) SlotChanged(_ context.Context, slot model.Slot) {
	env, err := slotEnvelope(slot, b.now())
	if err != nil {
		b.log.Error("encode slot update", zap.Error(err))
		return
	}
	b.dispatch(env)
}

func (b *LocalBroadcaster) BookingConfirmed(_ context.Context, userID uint64, notice BookingNotice) {
	env, err := userEnvelope(userID, notice)
	if err != nil {
		b.log.Error("encode booking notice", zap.Error(err))
		return
	}
	b.dispatch(env)
}

// dispatch sends a slot update once to the service topic and once to the
// catch-all topic of its date, or a notice to the user's connections.
func (b *LocalBroadcaster) dispatch(env envelope) {
	switch env.Kind {
	case kindSlot:
		n := b.hub.Publish(ServiceTopic(env.Date, env.ServiceID), env.Message)
		n += b.hub.Publish(AllTopic(env.Date), env.Message)
		b.log.Debug("slot update broadcast",
			zap.String("date", env.Date), zap.Uint64("service_id", env.ServiceID), zap.Int("delivered", n))
	case kindUser:
		b.hub.SendToUser(env.UserID, env.Message)
	default:
		b.log.Warn("unknown realtime envelope", zap.String("kind", env.Kind))
	}
}

// RedisBroadcaster publishes envelopes on a Redis channel so that every
// instance's RedisRelay (including this one's) delivers them to its own
// clients.  If the publish fails the event is delivered locally only.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
	local   *LocalBroadcaster
	log     *zap.Logger
	timeout time.Duration
}

func NewRedisBroadcaster(rdb *redis.Client, channel string, local *LocalBroadcaster, log *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, channel: channel, local: local, log: log, timeout: 2 * time.Second}
}

func (b *RedisBroadcaster) SlotChanged(ctx context.Context, slot model.Slot) {
	env, err := slotEnvelope(slot, b.local.now())
	if err != nil {
		b.log.Error("encode slot update", zap.Error(err))
		return
	}
	b.publish(ctx, env)
}

func (b *RedisBroadcaster) BookingConfirmed(ctx context.Context, userID uint64, notice BookingNotice) {
	env, err := userEnvelope(userID, notice)
	if err != nil {
		b.log.Error("encode booking notice", zap.Error(err))
		return
	}
	b.publish(ctx, env)
}

func (b *RedisBroadcaster) publish(ctx context.Context, env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		b.log.Error("encode realtime envelope", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.Warn("realtime relay publish failed, delivering locally", zap.Error(err))
		b.local.dispatch(env)
	}
}

// RedisRelay feeds envelopes from the Redis channel into the local hub.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	local   *LocalBroadcaster
	log     *zap.Logger
}

func NewRedisRelay(rdb *redis.Client, channel string, local *LocalBroadcaster, log *zap.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: channel, local: local, log: log}
}

// Run blocks until ctx is cancelled.  go-redis re-subscribes on its own
// after connection loss.
func (r *RedisRelay) Run(ctx context.Context) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()
	r.log.Info("realtime relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			r.handle(m.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("drop malformed realtime envelope", zap.Error(err))
		return
	}
	r.local.dispatch(env)
}
