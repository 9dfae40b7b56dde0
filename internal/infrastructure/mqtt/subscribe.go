package mqtt

import (
	"fmt"
	"sort"
)

// subscription is what the client needs to subscribe again after a reconnect.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// Subscribe registers handler for topic, which may contain + and #
// wildcards. The subscription is remembered and restored after every
// reconnect until Unsubscribe removes it. Subscribing the same topic
// again replaces its handler.
//
// Parameters:
//   - topic: Topic filter, e.g. a sensor state topic or Topics.AllCommands
//   - qos: Highest QoS the broker may deliver at
//   - handler: Called once per message, panics are recovered
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or a wrapped ErrSubscribeFailed
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	err := await(c.paho.Subscribe(topic, qos, c.wrapHandler(handler)), defaultPublishTimeout, ErrSubscribeFailed)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()
	return nil
}

// Unsubscribe drops a subscription made with Subscribe. The topic must
// match the subscribed filter exactly. Messages already in flight may
// still reach the old handler.
//
// Returns:
//   - error: ErrInvalidTopic, ErrNotConnected, or a wrapped ErrUnsubscribeFailed
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	// Forgotten first, so a reconnect racing with this call cannot restore it.
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.paho.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}

// resubscribe restores every remembered subscription. It runs from the
// connect handler, so failures are logged rather than returned.
func (c *Client) resubscribe() {
	c.mu.RLock()
	topics := make([]string, 0, len(c.subs))
	subs := make(map[string]subscription, len(c.subs))
	for topic, s := range c.subs {
		topics = append(topics, topic)
		subs[topic] = s
	}
	c.mu.RUnlock()
	sort.Strings(topics)

	for _, topic := range topics {
		s := subs[topic]
		err := await(c.paho.Subscribe(topic, s.qos, c.wrapHandler(s.handler)), defaultPublishTimeout, ErrSubscribeFailed)
		if err != nil {
			c.log().Warn("restoring MQTT subscription failed", "topic", topic, "error", err)
		}
	}
}
