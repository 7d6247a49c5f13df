package coordinator

import (
	"net"
	"time"

	"github.com/raddi-network/raddi/conn"
	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/protocol"
	"github.com/raddi-network/raddi/raddi"
)

// Scheduler drives the coordinator's cooperative, ≤1 Hz maintenance loop:
// dialing new peers up to the desired count, requesting more addresses
// when the dial pool runs dry, firing discovery broadcasts, sweeping
// retired connections, and flushing persistent state.
type Scheduler struct {
	node *Node
	tick *time.Ticker
	stop chan struct{}

	// Discover, when set, broadcasts the local-peer-discovery datagram.
	// Left nil disables step 6 of the loop (no UDP discovery configured).
	Discover func() error

	// ConnectRequests holds user-issued explicit connect targets, drained
	// in priority order ahead of established/validated/announced sampling.
	ConnectRequests []raddi.Address
}

// NewScheduler wraps node with a scheduler that has not yet started.
func NewScheduler(node *Node) *Scheduler {
	return &Scheduler{node: node, stop: make(chan struct{})}
}

// Run executes the scheduling loop every period (the source implementation
// runs this at ≤1 Hz) until Stop is called.
func (s *Scheduler) Run(period time.Duration) {
	s.tick = time.NewTicker(period)
	defer s.tick.Stop()
	for {
		select {
		case <-s.tick.C:
			s.RunOnce(time.Now())
		case <-s.stop:
			return
		}
	}
}

// Stop ends the loop started by Run.
func (s *Scheduler) Stop() {
	close(s.stop)
}

// RunOnce performs a single pass of the seven scheduling steps described
// in the coordinator design: count, dial-budget, more-peers query, fill,
// connect, discovery, flush.
func (s *Scheduler) RunOnce(now time.Time) {
	reaped := s.node.Sweep()
	_ = reaped

	cfg := s.node.Cfg()
	secured := s.node.SecuredCount()

	if secured < cfg.DesiredConnections && secured < cfg.MaxConnections {
		budget := cfg.DesiredConnections - secured
		if budget > cfg.MaxConcurrentAttempts {
			budget = cfg.MaxConcurrentAttempts
		}

		if budget > 0 && now.Sub(s.node.lastDialSuccess) > cfg.MorePeersQueryDelay {
			s.requestMorePeers()
		}

		targets := s.fillDialSet(budget)
		for _, addr := range targets {
			go s.connectAsync(addr)
		}
	}

	if s.Discover != nil && now.Sub(s.node.lastDiscoveryRun) > cfg.DiscoveryPeriod {
		s.node.lastDiscoveryRun = now
		go s.Discover()
	}

	s.sendKeepAlives(now, cfg.KeepAlivePeriod)

	_ = s.node.Flush()
}

func (s *Scheduler) requestMorePeers() {
	header := protocol.EncodeRequestHeader(protocol.RequestHeader{
		Type:      protocol.RequestPeers,
		Timestamp: uint32(raddi.Now()),
	})
	for _, c := range s.node.Connections() {
		if c.State() == conn.StateSecured {
			_ = c.Send(header[:])
		}
	}
}

// fillDialSet samples up to budget addresses, in priority order: explicit
// connect-requests first, then core, established, validated, announced.
func (s *Scheduler) fillDialSet(budget int) []raddi.Address {
	var out []raddi.Address

	for len(s.ConnectRequests) > 0 && len(out) < budget {
		out = append(out, s.ConnectRequests[0])
		s.ConnectRequests = s.ConnectRequests[1:]
	}
	if len(out) >= budget {
		return out
	}

	for _, level := range []db.PeerLevel{db.LevelCore, db.LevelEstablished, db.LevelValidated, db.LevelAnnounced} {
		set, ok := s.node.PeerSet(level)
		if !ok {
			continue
		}
		for _, addr := range set.Sample(budget - len(out)) {
			if s.node.ScorerHandle().IsBanned(addr) {
				continue
			}
			out = append(out, addr)
			if len(out) >= budget {
				return out
			}
		}
	}
	return out
}

func (s *Scheduler) connectAsync(addr raddi.Address) {
	socket, err := net.DialTimeout("tcp", addr.String(), 10*time.Second)
	if err != nil {
		s.node.ScorerHandle().Observe(db.LevelAnnounced, addr, -1)
		return
	}
	c, err := PerformHandshake(socket, addr, HandshakeOptions{
		Soft: protocol.SoftAESGCM | protocol.SoftAEGIS,
		Mode: protocol.ModeAutomatic,
		Now:  time.Now(),
	})
	if err != nil {
		socket.Close()
		s.node.ScorerHandle().Ban(addr, OutboundBanDuration)
		return
	}
	s.node.mu.Lock()
	s.node.lastDialSuccess = time.Now()
	s.node.mu.Unlock()
	s.node.AddConnection(c)
	s.node.ScorerHandle().Observe(db.LevelAnnounced, addr, 4)
}

// sendKeepAlives pings every secured connection idle for longer than
// period, matching "keep-alive sends 0x0000 when idle > keepalive_period."
func (s *Scheduler) sendKeepAlives(now time.Time, period time.Duration) {
	for _, c := range s.node.Connections() {
		if c.State() != conn.StateSecured {
			continue
		}
		if c.SinceLastSend() > period {
			_ = c.KeepAlive()
		}
		if c.IdleFor() > maxDuration(4*period, time.Second) {
			c.Retire()
		}
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
