// Package events provides the filesystem change feed behind the SSE
// endpoint. Subscribers watch a subtree of the path namespace; changes
// outside it are filtered out before they are queued, using the same
// prefix semantics the filesystem uses for directory keys.
package events

import (
	"strings"
	"sync"
	"time"

	"github.com/tabledav/tabledav/internal/metrics"
)

// Op is the kind of mutation a change describes.
type Op string

const (
	OpCreate Op = "create" // MKCOL
	OpModify Op = "modify" // PUT
	OpDelete Op = "delete" // DELETE
	OpMove   Op = "move"   // MOVE; Path is the source, Dest the new key
	OpCopy   Op = "copy"   // COPY; Path is the source, Dest the copy
)

// Change is one filesystem mutation as seen by the change feed.
//
// Path and Dest are cleaned table keys. Seq is a feed-local monotonic
// sequence number; a client that sees a gap knows it missed events and
// should resynchronize with PROPFIND rather than trust the feed.
type Change struct {
	Seq  int64  `json:"seq"`
	Op   Op     `json:"op"`
	Path string `json:"path"`
	Dest string `json:"dest,omitempty"`
	Size int64  `json:"size,omitempty"`
	ETag string `json:"etag,omitempty"`
	At   int64  `json:"at"`
}

// Touches reports whether the change affects the subtree rooted at
// root. Move and copy touch both endpoints: a watcher of the source
// sees the departure, a watcher of the destination the arrival.
func (c Change) Touches(root string) bool {
	if underRoot(root, c.Path) {
		return true
	}
	return c.Dest != "" && underRoot(root, c.Dest)
}

// underRoot is the directory-key prefix test: root covers itself and
// everything below "root/". A plain string prefix would leak "/ab"
// into a watch on "/a".
func underRoot(root, p string) bool {
	if root == "/" {
		return true
	}
	return p == root || strings.HasPrefix(p, root+"/")
}

// Subscription is one watcher of a subtree.
type Subscription struct {
	// C delivers the changes that touch the watched subtree.
	C <-chan Change

	root string
	ch   chan Change
}

// Root returns the watched subtree.
func (s *Subscription) Root() string {
	return s.root
}

// Feed fans filesystem changes out to subtree watchers.
type Feed struct {
	mu   sync.RWMutex
	seq  int64
	subs map[*Subscription]struct{}
}

// NewFeed creates an empty change feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[*Subscription]struct{})}
}

// Watch subscribes to changes under root (a cleaned path; "/" watches
// everything). The caller must Cancel the subscription when done.
func (f *Feed) Watch(root string) *Subscription {
	ch := make(chan Change, 64)
	sub := &Subscription{C: ch, root: root, ch: ch}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	n := len(f.subs)
	f.mu.Unlock()

	metrics.SetSSEConnectionsActive(int64(n))
	return sub
}

// Cancel removes a subscription and closes its channel.
func (f *Feed) Cancel(sub *Subscription) {
	f.mu.Lock()
	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(sub.ch)
	}
	n := len(f.subs)
	f.mu.Unlock()

	metrics.SetSSEConnectionsActive(int64(n))
}

// Publish stamps the change with the next sequence number and delivers
// it to every watcher whose subtree it touches. Delivery never blocks:
// a watcher with a full queue misses the change and will notice the
// sequence gap.
func (f *Feed) Publish(c Change) {
	if c.At == 0 {
		c.At = time.Now().UnixMilli()
	}

	f.mu.Lock()
	f.seq++
	c.Seq = f.seq
	for sub := range f.subs {
		if !c.Touches(sub.root) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			// Full queue; the watcher resyncs off the seq gap.
		}
	}
	f.mu.Unlock()

	metrics.RecordSSEEvent(string(c.Op))
}

// Watchers returns the current number of subscriptions.
func (f *Feed) Watchers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
