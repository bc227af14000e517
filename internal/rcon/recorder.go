package rcon

// Recorder receives wire-level traffic events as they happen. The
// telemetry package provides the instrumented implementation; sessions
// constructed without one record nowhere.
type Recorder interface {
	DatagramSent(opcode byte, wireBytes int)
	DatagramReceived(opcode byte, wireBytes int)
	KeepAlive()
	DecodeFailure()
}

type nopRecorder struct{}

func (nopRecorder) DatagramSent(byte, int)     {}
func (nopRecorder) DatagramReceived(byte, int) {}
func (nopRecorder) KeepAlive()                 {}
func (nopRecorder) DecodeFailure()             {}
