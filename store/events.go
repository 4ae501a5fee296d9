package store

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Listener receives connectivity transitions of a Conn.
// Handlers run on the goroutine that observed the transition and must not block.
type Listener interface {
	Connected()
	Disconnected(err error)
}

// ListenerFuncs adapts a pair of functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnConnect    func()
	OnDisconnect func(err error)
}

func (f ListenerFuncs) Connected() {
	if f.OnConnect != nil {
		f.OnConnect()
	}
}

func (f ListenerFuncs) Disconnected(err error) {
	if f.OnDisconnect != nil {
		f.OnDisconnect(err)
	}
}

// notifier fans out connectivity events to a set of listeners
type notifier struct {
	listeners *xsync.MapOf[uint64, Listener]
	nextID    atomic.Uint64
}

func newNotifier() *notifier {
	return &notifier{
		listeners: xsync.NewMapOf[uint64, Listener](),
	}
}

// add registers l and returns a function removing it again
func (n *notifier) add(l Listener) func() {
	id := n.nextID.Add(1)
	n.listeners.Store(id, l)
	return func() {
		n.listeners.Delete(id)
	}
}

func (n *notifier) Connected() {
	n.listeners.Range(func(_ uint64, l Listener) bool {
		l.Connected()
		return true
	})
}

func (n *notifier) Disconnected(err error) {
	n.listeners.Range(func(_ uint64, l Listener) bool {
		l.Disconnected(err)
		return true
	})
}
