package mempool

import "sort"

// Evict removes the oldest-admitted transactions until the pool is at or
// below maxSize, preserving the newest arrivals (insertion order is the
// pool's fairness signal — there is no fee-rate ranking to fall back on).
func (p *Pool) Evict() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.txs) <= p.maxSize {
		return 0
	}

	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	evicted := 0
	for len(p.txs) > p.maxSize && evicted < len(entries) {
		p.removeLocked(entries[evicted].tx.Hash())
		evicted++
	}
	return evicted
}
