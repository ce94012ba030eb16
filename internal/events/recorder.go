package events

import "sync"

// Sent is one delivered event. PlayerID is 0 for broadcasts.
type Sent struct {
	PlayerID int64
	Event    string
	Data     any
}

// Recorder is a Notifier that keeps everything it is given. Tests use it in
// place of the websocket hub.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
}

func (r *Recorder) SendToPlayer(playerID int64, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{PlayerID: playerID, Event: event, Data: data})
}

func (r *Recorder) Broadcast(event string, data any) {
	r.SendToPlayer(0, event, data)
}

// Events returns a copy of everything sent so far.
func (r *Recorder) Events() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// For returns what was sent to one player, in order.
func (r *Recorder) For(playerID int64) []Sent {
	var out []Sent
	for _, s := range r.Events() {
		if s.PlayerID == playerID {
			out = append(out, s)
		}
	}
	return out
}

// Count returns how many times event was sent, to anyone.
func (r *Recorder) Count(event string) int {
	n := 0
	for _, s := range r.Events() {
		if s.Event == event {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
