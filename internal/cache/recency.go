package cache

// node is one link in the recency chain. A node identifies its
// neighbors; it does not own them.
type node struct {
	key  string
	prev *node
	next *node
}

// recencyList tracks most-to-least-recently-used order as a key-indexed
// doubly linked chain: head is the most recently used key, tail the
// least. It is not safe for concurrent use; the Store guards it.
type recencyList struct {
	nodes map[string]*node
	head  *node
	tail  *node
}

func newRecencyList() *recencyList {
	return &recencyList{nodes: make(map[string]*node)}
}

func (l *recencyList) len() int {
	return len(l.nodes)
}

func (l *recencyList) contains(key string) bool {
	_, ok := l.nodes[key]
	return ok
}

// moveToFront promotes key to the head, inserting a node if the key is
// not tracked yet.
func (l *recencyList) moveToFront(key string) {
	n, ok := l.nodes[key]
	if !ok {
		n = &node{key: key}
		l.nodes[key] = n
		l.pushFront(n)
		return
	}
	if l.head == n {
		return
	}
	l.unlink(n)
	l.pushFront(n)
}

// remove detaches key from the chain and forgets its node.
func (l *recencyList) remove(key string) {
	n, ok := l.nodes[key]
	if !ok {
		return
	}
	l.unlink(n)
	delete(l.nodes, key)
}

// tailToHead returns the tracked keys in least-to-most-recently-used
// order, the order space reclamation considers victims in.
func (l *recencyList) tailToHead() []string {
	keys := make([]string, 0, len(l.nodes))
	for n := l.tail; n != nil; n = n.prev {
		keys = append(keys, n.key)
	}
	return keys
}

// rebuild replaces the whole chain. keys[0] ends up at the head.
func (l *recencyList) rebuild(keys []string) {
	l.clear()
	for i := len(keys) - 1; i >= 0; i-- {
		l.moveToFront(keys[i])
	}
}

func (l *recencyList) clear() {
	l.nodes = make(map[string]*node)
	l.head = nil
	l.tail = nil
}

func (l *recencyList) pushFront(n *node) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *recencyList) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}
