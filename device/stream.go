package device

import "io"

// streamDevice holds the state common to both stream adapters: the generic
// state machine and a (here, empty) register bank. Concrete stream devices
// never fail into StateBusy/StateError themselves, but the field is kept so
// a future device sharing this base can.
type streamDevice struct {
	state State
	regs  Bank
}

func (s *streamDevice) reset() {
	s.state = StateReadyForCommand
	s.regs.Reset()
}

func (s *streamDevice) dispatch(command uint32, exec func(sub StreamCommand, arg byte) uint32) uint32 {
	if s.state != StateReadyForCommand {
		return ErrorSentinel
	}
	cmd, ok := DecodeCommand(command)
	if !ok {
		return ErrorSentinel
	}
	switch cmd.Kind {
	case CmdReset:
		s.reset()
		return 0
	case CmdGetRegister:
		return s.regs.Get(cmd.Register)
	case CmdSetRegister:
		return s.regs.Set(cmd.Register, cmd.Value)
	case CmdExec:
		return exec(cmd.Sub, cmd.Argument)
	default:
		return ErrorSentinel
	}
}

func (s *streamDevice) DMAPoll() (DMARequest, bool)    { return DMARequest{}, false }
func (s *streamDevice) DMAReadResponse(uint32, uint32) {}
func (s *streamDevice) DMAWriteResponse(uint32)        {}

// StdinDevice is a stream device that answers Read with the next byte of an
// underlying io.Reader, the all-ones sentinel at EOF or on any read error,
// and rejects Write/Seek.
type StdinDevice struct {
	streamDevice
	r io.Reader
}

// NewStdinDevice wires a host reader as the source of Exec/Read bytes.
func NewStdinDevice(r io.Reader) *StdinDevice {
	return &StdinDevice{streamDevice: streamDevice{state: StateReadyForCommand}, r: r}
}

func (d *StdinDevice) Ioctl(command uint32) uint32 {
	return d.dispatch(command, func(sub StreamCommand, _ byte) uint32 {
		if sub != StreamRead {
			return ErrorSentinel
		}
		var buf [1]byte
		n, err := d.r.Read(buf[:])
		if n == 0 || err != nil {
			return ErrorSentinel
		}
		return uint32(buf[0])
	})
}

// StdoutDevice is a stream device that writes the low byte of Exec/Write's
// argument to an underlying io.Writer, and rejects Read/Seek.
type StdoutDevice struct {
	streamDevice
	w io.Writer
}

// NewStdoutDevice wires a host writer as a byte sink.
func NewStdoutDevice(w io.Writer) *StdoutDevice {
	return &StdoutDevice{streamDevice: streamDevice{state: StateReadyForCommand}, w: w}
}

func (d *StdoutDevice) Ioctl(command uint32) uint32 {
	return d.dispatch(command, func(sub StreamCommand, arg byte) uint32 {
		if sub != StreamWrite {
			return ErrorSentinel
		}
		if _, err := d.w.Write([]byte{arg}); err != nil {
			return ErrorSentinel
		}
		return 0
	})
}
