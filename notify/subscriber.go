package notify

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// SubscribeEvents listens on the events channel and delivers each event to the
// local registry. It reconnects after the pubsub channel closes and returns
// when ctx is cancelled.
func SubscribeEvents(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, reg Deliverer) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var env envelope
				if err := sonic.UnmarshalString(msg.Payload, &env); err != nil {
					logger.Errorf("unable to parse event: %v", err)
					continue
				}
				if len(env.Rooms) == 0 {
					continue
				}
				data, err := sonic.Marshal(env.Event)
				if err != nil {
					logger.Errorf("marshal event: %v", err)
					continue
				}
				reg.Deliver(env.Rooms, data)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}
