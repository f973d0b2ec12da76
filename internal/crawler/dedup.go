package crawler

// dedupSet tracks the child keys already emitted under one parent. It is
// owned by the call enumerating that parent and is not safe for concurrent
// use.
type dedupSet struct {
	seen map[string]struct{}
}

func newDedupSet() *dedupSet {
	return &dedupSet{seen: make(map[string]struct{})}
}

// MarkIfNew records key and reports whether it was unseen. Empty keys are
// never new.
func (d *dedupSet) MarkIfNew(key string) bool {
	if key == "" {
		return false
	}
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}
