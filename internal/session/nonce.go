package session

import "time"

// NonceStore remembers consumed token nonces for a limited time. It is the
// replay guard and is independent from token validity and session state.
type NonceStore struct {
	nonces *expiring[struct{}]
}

func NewNonceStore(now Clock) *NonceStore {
	return &NonceStore{nonces: newExpiring[struct{}](now)}
}

// Seen reports whether nonce was remembered and has not expired yet.
func (n *NonceStore) Seen(nonce string) bool {
	n.nonces.mu.Lock()
	defer n.nonces.mu.Unlock()

	_, ok := n.nonces.live(nonce)
	return ok
}

// Remember stores nonce for ttl. It returns false if the nonce was already
// remembered, so two concurrent completions cannot both win.
func (n *NonceStore) Remember(nonce string, ttl time.Duration) bool {
	n.nonces.mu.Lock()
	defer n.nonces.mu.Unlock()

	if _, ok := n.nonces.live(nonce); ok {
		return false
	}
	n.nonces.items[nonce] = &item[struct{}]{expiresAt: n.nonces.now().Add(ttl)}
	return true
}

// Forget re-arms a nonce whose completion could not be credited.
func (n *NonceStore) Forget(nonce string) {
	n.nonces.mu.Lock()
	defer n.nonces.mu.Unlock()
	delete(n.nonces.items, nonce)
}

func (n *NonceStore) Len() int { return n.nonces.len() }

func (n *NonceStore) Sweep() int { return n.nonces.sweep() }

func (n *NonceStore) StartJanitor(interval time.Duration) { n.nonces.startJanitor(interval) }

func (n *NonceStore) Stop() { n.nonces.stopJanitor() }
