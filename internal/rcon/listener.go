package rcon

import (
	"github.com/zanrcon-project/zanrcon/internal/protocol"
)

// listen owns the socket once the session is established. Each read is
// armed with the receive timeout; an expiry means the server has been
// quiet and gets a keep-alive. The loop ends when teardown closes the
// socket under it or a packet proves fatal, and the cooperating
// shutdown path waits on listenerExited before declaring the session
// fully down.
func (s *Session) listen() {
	defer close(s.listenerExited)

	buf := make([]byte, protocol.MaxDatagramSize)
	for {
		pkt, err := s.readPacket(buf)
		if err != nil {
			if s.halting() {
				s.finish(nil)
				return
			}
			if isTimeout(err) {
				s.keepAlive()
				continue
			}
			s.log.Error().Err(err).Msg("receive failed")
			s.shutdown(err)
			return
		}

		if err := s.dispatch(pkt); err != nil {
			s.log.Error().Err(err).Msg("server ended the session")
			s.shutdown(err)
			return
		}
	}
}

// keepAlive tells the server this console is still here. Send failures
// surface on the next read if the socket is truly gone, so they are
// only logged.
func (s *Session) keepAlive() {
	if err := s.send(protocol.BuildPong()); err != nil {
		s.log.Warn().Err(err).Msg("failed to send keep-alive")
		return
	}
	s.ctr.keepAlives.Add(1)
	s.recorder.KeepAlive()
	s.log.Debug().Msg("keep-alive sent")
}
