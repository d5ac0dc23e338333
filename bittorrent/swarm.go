package bittorrent

// Stats summarizes the state of one swarm.
type Stats struct {
	Complete   int    `json:"complete"`
	Incomplete int    `json:"incomplete"`
	Downloaded uint64 `json:"downloaded"`
	Uploaded   uint64 `json:"uploaded"`
	Peers      int    `json:"peers"`
}

// AggregateSwarm computes the seeder, leecher and transfer totals for a
// snapshot of peers. It has no side effects on the peers themselves.
func AggregateSwarm(peers []Peer) Stats {
	var s Stats
	for _, p := range peers {
		if p.Seeder {
			s.Complete++
		}
		s.Uploaded += p.Uploaded
		s.Downloaded += p.Downloaded
	}
	s.Peers = len(peers)
	s.Incomplete = s.Peers - s.Complete
	return s
}
