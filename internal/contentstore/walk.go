package contentstore

import (
	"container/heap"
	"context"
)

// walker yields the commits reachable from a start commit in topological
// order, loading commit objects only as far as the order requires.
//
// Discovered commits wait in explore, newest committer time first. A commit
// is emitted once it has no unemitted in-walk child and nothing left in
// explore is as new as it is: any commit still unread that could be its
// child sits behind an explore entry at least that new. Commits reachable
// from hide are marked hidden as they are read, and the walk ends once no
// unhidden commit is left to explore or emit.
type walker struct {
	s       *Store
	nodes   map[Hash]*walkNode
	explore nodeHeap
	ready   nodeHeap
	// pending counts unhidden commits in explore.
	pending int
}

type walkNode struct {
	commit   *Commit
	hidden   bool
	expanded bool
	emitted  bool
	queued   bool
	// children counts expanded unhidden children not yet emitted.
	children int
}

func newWalker(ctx context.Context, s *Store, start, hide Hash) (*walker, error) {
	w := &walker{s: s, nodes: make(map[Hash]*walkNode)}
	if hide != ZeroHash {
		n, err := w.discover(ctx, hide)
		if err != nil {
			return nil, err
		}
		w.markHidden(n)
	}
	n, err := w.discover(ctx, start)
	if err != nil {
		return nil, err
	}
	if !n.hidden {
		w.enqueue(n)
	}
	return w, nil
}

// discover returns the node for id, reading the commit on first sight.
func (w *walker) discover(ctx context.Context, id Hash) (*walkNode, error) {
	if n, ok := w.nodes[id]; ok {
		return n, nil
	}
	c, err := w.s.Commit(ctx, id)
	if err != nil {
		return nil, err
	}
	n := &walkNode{commit: c}
	w.nodes[id] = n
	heap.Push(&w.explore, n)
	w.pending++
	return n, nil
}

// expandNext reads the parents of the newest commit in explore.
func (w *walker) expandNext(ctx context.Context) error {
	n := heap.Pop(&w.explore).(*walkNode)
	n.expanded = true
	if !n.hidden {
		w.pending--
	}
	for _, p := range n.commit.Parents {
		pn, err := w.discover(ctx, p)
		if err != nil {
			return err
		}
		if n.hidden {
			w.markHidden(pn)
		} else {
			pn.children++
		}
	}
	return nil
}

// markHidden hides n and every already expanded commit behind it.
func (w *walker) markHidden(n *walkNode) {
	stack := []*walkNode{n}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.hidden {
			continue
		}
		n.hidden = true
		if !n.expanded {
			w.pending--
			continue
		}
		for _, p := range n.commit.Parents {
			if pn, ok := w.nodes[p]; ok {
				stack = append(stack, pn)
			}
		}
	}
}

func (w *walker) enqueue(n *walkNode) {
	n.queued = true
	heap.Push(&w.ready, n)
}

// next returns the next commit in order, or nil when the walk is done.
func (w *walker) next(ctx context.Context) (*Commit, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if w.ready.Len() == 0 {
			if w.pending == 0 {
				return nil, nil
			}
			if err := w.expandNext(ctx); err != nil {
				return nil, err
			}
			continue
		}

		n := w.ready[0]
		if n.hidden || n.emitted || n.children > 0 {
			heap.Pop(&w.ready)
			n.queued = false
			continue
		}
		if w.explore.Len() > 0 && !w.explore[0].commit.CommitTime.Before(n.commit.CommitTime) {
			if err := w.expandNext(ctx); err != nil {
				return nil, err
			}
			continue
		}

		heap.Pop(&w.ready)
		n.queued = false
		n.emitted = true
		for _, p := range n.commit.Parents {
			pn := w.nodes[p]
			if pn.hidden {
				continue
			}
			pn.children--
			if pn.children == 0 && !pn.queued && !pn.emitted {
				w.enqueue(pn)
			}
		}
		return n.commit, nil
	}
}

// nodeHeap pops the newest commit first; ties break on id for a stable order.
type nodeHeap []*walkNode

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool { return newer(h[i].commit, h[j].commit) }

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(*walkNode)) }

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// commitHeap is nodeHeap for bare commits.
type commitHeap []*Commit

func (h commitHeap) Len() int { return len(h) }

func (h commitHeap) Less(i, j int) bool { return newer(h[i], h[j]) }

func (h commitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *commitHeap) Push(x any) { *h = append(*h, x.(*Commit)) }

func (h *commitHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

func newer(a, b *Commit) bool {
	if !a.CommitTime.Equal(b.CommitTime) {
		return a.CommitTime.After(b.CommitTime)
	}
	return a.ID.String() < b.ID.String()
}
