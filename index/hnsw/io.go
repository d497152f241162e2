package hnsw

import (
	"encoding/binary"
	"fmt"

	"github.com/viant/vecindex/index"
)

// MarshalStructure encodes the graph with node references expressed as
// ordinals into sorted, the entries in (ID, Key) order:
//
//	[4B maxLevel] [4B entry ordinal]
//	for each entry: [4B level] then per layer [4B n] [n x 4B ordinals]
func (h *Index) MarshalStructure(sorted []index.Entry) ([]byte, error) {
	if len(sorted) != h.count {
		return nil, fmt.Errorf("hnsw: structure for %d entries, index holds %d", len(sorted), h.count)
	}
	ordinal := make(map[uint32]uint32, h.count)
	for i, e := range sorted {
		idx, ok := h.idMap[[2]string{e.ID, e.Key}]
		if !ok {
			return nil, fmt.Errorf("hnsw: entry %s/%s not in graph", e.ID, e.Key)
		}
		ordinal[idx] = uint32(i)
	}
	le := binary.LittleEndian
	out := make([]byte, 0, 8+len(sorted)*(8+4*h.cfg.M*2))
	out = le.AppendUint32(out, uint32(h.maxLevel))
	entry := uint32(0xFFFFFFFF)
	if h.entryID >= 0 {
		entry = ordinal[uint32(h.entryID)]
	}
	out = le.AppendUint32(out, entry)
	for _, e := range sorted {
		nd := h.nodes[h.idMap[[2]string{e.ID, e.Key}]]
		out = le.AppendUint32(out, uint32(nd.level))
		for _, friends := range nd.friends {
			// links to removed nodes are dropped; search skips them anyway
			live := make([]uint32, 0, len(friends))
			for _, f := range friends {
				if o, ok := ordinal[f]; ok {
					live = append(live, o)
				}
			}
			out = le.AppendUint32(out, uint32(len(live)))
			for _, o := range live {
				out = le.AppendUint32(out, o)
			}
		}
	}
	return out, nil
}

// RestoreStructure rebuilds the graph written by MarshalStructure over
// sorted, which must be the same entries in the same order.
func (h *Index) RestoreStructure(sorted []index.Entry, data []byte) error {
	dim, err := index.Validate(h.metric, 0, sorted)
	if err != nil {
		return fmt.Errorf("hnsw: %w", err)
	}
	le := binary.LittleEndian
	off := 0
	next := func() (uint32, error) {
		if off+4 > len(data) {
			return 0, fmt.Errorf("hnsw: %w: truncated structure", index.ErrCorruptSnapshot)
		}
		v := le.Uint32(data[off:])
		off += 4
		return v, nil
	}
	h.reset()
	h.dim = dim
	maxLevel, err := next()
	if err != nil {
		return err
	}
	entry, err := next()
	if err != nil {
		return err
	}
	n := uint32(len(sorted))
	h.nodes = make([]*node, n)
	for i, e := range sorted {
		level, err := next()
		if err != nil {
			return err
		}
		if level > 31 {
			return fmt.Errorf("hnsw: %w: level %d", index.ErrCorruptSnapshot, level)
		}
		nd := &node{entry: e, work: h.workVector(e.Vector), level: int(level), friends: make([][]uint32, level+1)}
		for lev := range nd.friends {
			cnt, err := next()
			if err != nil {
				return err
			}
			if cnt > n {
				return fmt.Errorf("hnsw: %w: %d friends", index.ErrCorruptSnapshot, cnt)
			}
			friends := make([]uint32, cnt)
			for j := range friends {
				if friends[j], err = next(); err != nil {
					return err
				}
				if friends[j] >= n {
					return fmt.Errorf("hnsw: %w: friend %d out of range", index.ErrCorruptSnapshot, friends[j])
				}
			}
			nd.friends[lev] = friends
		}
		h.nodes[i] = nd
		h.idMap[[2]string{e.ID, e.Key}] = uint32(i)
	}
	h.count = len(sorted)
	if n == 0 {
		return nil
	}
	if entry >= n {
		return fmt.Errorf("hnsw: %w: entry point %d out of range", index.ErrCorruptSnapshot, entry)
	}
	h.entryID = int32(entry)
	h.maxLevel = int(maxLevel)
	return nil
}

var _ index.Structured = (*Index)(nil)
