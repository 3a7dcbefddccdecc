package deriv

import (
	"log"
	"sync"
)

// Stream kinds tracked by the registry. They match the forget_all scope
// names the API expects.
const (
	KindTicks    = "ticks"
	KindBalance  = "balance"
	KindProposal = "proposal"
)

// sender is the outbound half of Client, split out so registry tests can
// capture requests without a socket.
type sender interface {
	Send(v any)
}

// Registry tracks live server-side streams by kind. Subscribing to a kind
// that is already live forgets the old stream first, so redundant
// subscribe calls never stack duplicate streams. Stream ids arrive
// asynchronously on the ack frame; Ack records them so Forget can name
// the stream later.
type Registry struct {
	api sender

	mu  sync.Mutex
	ids map[string]string
}

func NewRegistry(api sender) *Registry {
	return &Registry{api: api, ids: make(map[string]string)}
}

// SubscribeTicks starts a live tick stream for symbol, tearing down any
// previous tick stream first.
func (r *Registry) SubscribeTicks(symbol string) {
	r.teardown(KindTicks)
	r.api.Send(TicksRequest{Ticks: symbol, Subscribe: 1})
}

// SubscribeBalance starts balance pushes. Account is "all" to cover every
// login, or a specific loginid.
func (r *Registry) SubscribeBalance(account string) {
	r.teardown(KindBalance)
	r.api.Send(BalanceRequest{Balance: 1, Subscribe: 1, Account: account})
}

// Ack records the stream id from a subscription ack. The tick stream acks
// with msg_type "tick" (including every stream frame), balance with
// "balance", proposal streams with "proposal"; other message types are
// ignored.
func (r *Registry) Ack(msgType, id string) {
	var kind string
	switch msgType {
	case "tick", "history":
		kind = KindTicks
	case "balance":
		kind = KindBalance
	case "proposal":
		kind = KindProposal
	default:
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ids[kind] != id {
		r.ids[kind] = id
		log.Printf("[subs] %s stream id=%s", kind, id)
	}
}

// Forget cancels the stream for kind. A kind with no recorded id is a
// no-op: there is nothing server-side to cancel.
func (r *Registry) Forget(kind string) {
	r.teardown(kind)
}

// ForgetAll cancels every stream of the given kinds in one request and
// drops their recorded ids. The request always carries the array form so
// multiple scopes clear atomically.
func (r *Registry) ForgetAll(kinds ...string) {
	if len(kinds) == 0 {
		return
	}
	r.api.Send(ForgetAllRequest{ForgetAll: kinds})

	r.mu.Lock()
	for _, k := range kinds {
		delete(r.ids, k)
	}
	r.mu.Unlock()
}

// ID returns the recorded stream id for kind, or "" when the ack has not
// arrived or the stream is not live.
func (r *Registry) ID(kind string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids[kind]
}

func (r *Registry) teardown(kind string) {
	r.mu.Lock()
	id := r.ids[kind]
	delete(r.ids, kind)
	r.mu.Unlock()

	if id != "" {
		r.api.Send(ForgetRequest{Forget: id})
	}
}
