package display

import "log"

// outMsg is a serialized MQTT message waiting for a broker connection.
type outMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog keeps the most recent messages published while the broker is
// unreachable, for replay on reconnect. Trackers live on flaky rural links,
// so the status topic going quiet for an hour is normal, not exceptional.
// Not safe for concurrent use; the caller synchronizes.
type backlog struct {
	msgs    []outMsg
	max     int
	dropped bool // a message was discarded since the last take
}

func newBacklog(max int) *backlog {
	return &backlog{max: max}
}

// add queues a message, discarding the oldest when full.
func (b *backlog) add(m outMsg) {
	if len(b.msgs) >= b.max {
		if !b.dropped {
			log.Printf("display: mqtt backlog full (%d messages), discarding oldest", b.max)
			b.dropped = true
		}
		b.msgs = b.msgs[1:]
	}
	b.msgs = append(b.msgs, m)
}

// take returns everything queued, oldest first, and empties the backlog.
func (b *backlog) take() []outMsg {
	if len(b.msgs) == 0 {
		return nil
	}
	out := b.msgs
	b.msgs = nil
	b.dropped = false
	return out
}

func (b *backlog) size() int {
	return len(b.msgs)
}
