package disk

import "time"

// Stats accumulates per-disk I/O time and volume. Every request counts,
// whether it succeeded or not and whether the cache served it.
type Stats struct {
	Reads     uint64        `json:"reads"`
	ReadTime  time.Duration `json:"read_time_ns"`
	ReadKB    uint64        `json:"read_kb"`
	Writes    uint64        `json:"writes"`
	WriteTime time.Duration `json:"write_time_ns"`
	WriteKB   uint64        `json:"write_kb"`
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Reads:     s.Reads + o.Reads,
		ReadTime:  s.ReadTime + o.ReadTime,
		ReadKB:    s.ReadKB + o.ReadKB,
		Writes:    s.Writes + o.Writes,
		WriteTime: s.WriteTime + o.WriteTime,
		WriteKB:   s.WriteKB + o.WriteKB,
	}
}

func (s *Stats) record(write bool, elapsed time.Duration, kb uint64) {
	if write {
		s.Writes++
		s.WriteTime += elapsed
		s.WriteKB += kb
		return
	}
	s.Reads++
	s.ReadTime += elapsed
	s.ReadKB += kb
}
