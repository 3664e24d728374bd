// Package vm implements the stack-oriented execution engine: the fetch,
// decode, and dispatch loop over a packed-instruction-word image, its two
// stacks, and the memory-mapped device protocol.
package vm

import (
	"os"

	"bear/cell"
	"bear/device"
	"bear/image"
	"bear/opcode"
)

// wordSize is the number of bytes packed into a single instruction word,
// and therefore the number of opcodes fetched from one decode.
const wordSize = 4

// defaultCoreDumpPath is where Halt writes the image when the data stack's
// top is the all-ones sentinel.
const defaultCoreDumpPath = "core.bin"

// VM owns the mutable image and both stacks; devices are attached before
// Start is called. A VM is produced once per run: Start snapshots it into an
// ExecutionState that owns the fetch cursor.
type VM struct {
	Image   []uint32
	Data    []cell.Cell
	Address []cell.Cell
	Devices []device.Device

	// CoreDumpPath overrides where Halt writes the image on the
	// all-ones-sentinel core dump trigger. Defaults to "core.bin".
	CoreDumpPath string

	// Trace, if non-nil, receives the ip and opcode of every opcode dispatched.
	Trace TraceFunc
}

// TraceFunc receives one line of execution trace per dispatched opcode.
type TraceFunc func(ip uint32, op opcode.OpCode)

// New constructs a VM over the given word image. The image is used and
// mutated in place; callers that need to preserve the original should copy.
func New(words []uint32) *VM {
	return &VM{Image: words}
}

// NewFromBytes is a convenience wrapper pairing image.PackBytes with New.
func NewFromBytes(b []byte) *VM {
	return New(image.PackBytes(b))
}

// WithDevice attaches a device, in registration order; registration order
// is the order the DMA sync pass visits devices every step.
func (vm *VM) WithDevice(d device.Device) *VM {
	vm.Devices = append(vm.Devices, d)
	return vm
}

func (vm *VM) dataPop() (cell.Cell, error) {
	n := len(vm.Data)
	if n == 0 {
		return 0, fault(ErrDataUnderflow)
	}
	v := vm.Data[n-1]
	vm.Data = vm.Data[:n-1]
	return v, nil
}

func (vm *VM) dataPeek() (cell.Cell, error) {
	n := len(vm.Data)
	if n == 0 {
		return 0, fault(ErrDataUnderflow)
	}
	return vm.Data[n-1], nil
}

func (vm *VM) dataPush(v cell.Cell) { vm.Data = append(vm.Data, v) }

func (vm *VM) addressPop() (cell.Cell, error) {
	n := len(vm.Address)
	if n == 0 {
		return 0, fault(ErrAddressUnderflow)
	}
	v := vm.Address[n-1]
	vm.Address = vm.Address[:n-1]
	return v, nil
}

func (vm *VM) addressPush(v cell.Cell) { vm.Address = append(vm.Address, v) }

// ExecutionState is the fetch cursor produced by Start: the three indices
// that together make up the encoded instruction pointer, plus the running
// flag. See IP and ipGetEncoded for why three indices instead of one.
type ExecutionState struct {
	VM *VM

	LoadedWordIndex  uint32
	CurrentWordIndex uint32
	InstructionIndex uint32
	Word             [wordSize]byte
	Running          bool
}

// Start prepares the VM for execution: loads word 0 and marks it running.
// It does not execute any instructions; call Run or Step to do that.
func (vm *VM) Start() (*ExecutionState, error) {
	if len(vm.Image) == 0 {
		return nil, fault(ErrIPOutOfBounds)
	}
	return &ExecutionState{
		VM:      vm,
		Word:    image.WordToBytes(vm.Image[0]),
		Running: true,
	}, nil
}

// IP is the externally visible instruction pointer. It tracks
// LoadedWordIndex, not CurrentWordIndex: `lit` advances CurrentWordIndex to
// fetch its operand but deliberately leaves LoadedWordIndex (and so IP)
// pointing at the word the running instruction stream is packed into. The
// two are only resynchronized when InstructionIndex wraps in ipInc.
func (s *ExecutionState) IP() uint32 {
	return s.LoadedWordIndex*wordSize + s.InstructionIndex
}

func (s *ExecutionState) ipSet(loaded, current, instruction uint32) error {
	if uint32(len(s.VM.Image)) <= loaded {
		return faultAt(loaded*wordSize+instruction, ErrIPOutOfBounds)
	}
	s.LoadedWordIndex = loaded
	s.CurrentWordIndex = current
	s.InstructionIndex = instruction
	s.Word = image.WordToBytes(s.VM.Image[loaded])
	return nil
}

// ipGetEncoded packs the three cursor indices into the triple call/ret use
// to resume mid-word after a return.
func (s *ExecutionState) ipGetEncoded() uint32 {
	return (s.LoadedWordIndex << 17) | (s.CurrentWordIndex << 2) | s.InstructionIndex
}

func (s *ExecutionState) ipSetEncoded(encoded uint32) error {
	instruction := encoded & 3
	loaded := encoded >> 17
	current := (encoded >> 2) & 0x7FFF
	return s.ipSet(loaded, current, instruction)
}

// ipInc advances the cursor by one opcode, crossing into the next word (and
// re-synchronizing LoadedWordIndex with CurrentWordIndex) once the last byte
// of the current word has been consumed.
func (s *ExecutionState) ipInc() error {
	if s.InstructionIndex == wordSize-1 {
		s.CurrentWordIndex++
		s.LoadedWordIndex = s.CurrentWordIndex
		s.InstructionIndex = 0
		if uint32(len(s.VM.Image)) <= s.LoadedWordIndex {
			return faultAt(s.IP(), ErrIPOutOfBounds)
		}
		s.Word = image.WordToBytes(s.VM.Image[s.LoadedWordIndex])
	} else {
		s.InstructionIndex++
	}
	return nil
}

func (s *ExecutionState) instruction() (opcode.OpCode, error) {
	op, ok := opcode.Decode(s.Word[s.InstructionIndex])
	if !ok {
		return 0, faultAt(s.IP(), ErrInvalidOpcode)
	}
	return op, nil
}

func (s *ExecutionState) dataPop() (cell.Cell, error) {
	v, err := s.VM.dataPop()
	if err != nil {
		return 0, s.annotate(err)
	}
	return v, nil
}

func (s *ExecutionState) dataPeek() (cell.Cell, error) {
	v, err := s.VM.dataPeek()
	if err != nil {
		return 0, s.annotate(err)
	}
	return v, nil
}

func (s *ExecutionState) addressPop() (cell.Cell, error) {
	v, err := s.VM.addressPop()
	if err != nil {
		return 0, s.annotate(err)
	}
	return v, nil
}

func (s *ExecutionState) annotate(err error) error {
	if re, ok := err.(*RuntimeError); ok && !re.HasIP {
		re.IP = s.IP()
		re.HasIP = true
		return re
	}
	return err
}

// Run executes instructions until Halt or a fault.
func (s *ExecutionState) Run() error {
	for {
		if err := s.Step(); err != nil {
			return err
		}
		if !s.Running {
			return nil
		}
		s.sync()
	}
}

// Step decodes and executes exactly one opcode, then advances the cursor
// (Halt is the exception: it clears Running and skips the advance).
func (s *ExecutionState) Step() error {
	op, err := s.instruction()
	if err != nil {
		return err
	}
	if s.VM.Trace != nil {
		s.VM.Trace(s.IP(), op)
	}

	if err := s.dispatch(op); err != nil {
		return err
	}
	if op == opcode.Halt {
		s.Running = false
		return nil
	}
	return s.ipInc()
}

func (s *ExecutionState) dispatch(op opcode.OpCode) error {
	switch op {
	case opcode.Nop:
		return nil
	case opcode.Halt:
		return s.instHalt()

	case opcode.Lit:
		return s.instLit()
	case opcode.Sext8:
		return s.instSext8()
	case opcode.Sext16:
		return s.instSext16()

	case opcode.Dup:
		return s.instDup()
	case opcode.Drop:
		return s.instDrop()
	case opcode.Swap:
		return s.instSwap()
	case opcode.MoveDataToAddr:
		return s.instMoveDataToAddr()
	case opcode.MoveAddrToData:
		return s.instMoveAddrToData()

	case opcode.Not:
		return s.instUnary(cell.Cell.Not)
	case opcode.And:
		return s.instBinary(cell.Cell.And)
	case opcode.Or:
		return s.instBinary(cell.Cell.Or)
	case opcode.Xor:
		return s.instBinary(cell.Cell.Xor)
	case opcode.Equal:
		return s.instBinary(cell.Cell.Eq)
	case opcode.LessThan:
		return s.instBinary(cell.Cell.Lt)
	case opcode.GreaterThan:
		return s.instBinary(cell.Cell.Gt)

	case opcode.Add:
		return s.instBinary(cell.Cell.Add)
	case opcode.Sub:
		return s.instBinary(cell.Cell.Sub)
	case opcode.Mul:
		return s.instBinary(cell.Cell.Mul)
	case opcode.Div:
		return s.instBinary(cell.Cell.Div)
	case opcode.Mod:
		return s.instBinary(cell.Cell.Mod)
	case opcode.Shift:
		return s.instShift()

	case opcode.Call:
		return s.instCall(false)
	case opcode.Jump:
		return s.instJump(false)
	case opcode.Return:
		return s.instReturn(false)
	case opcode.CallIfZ:
		return s.instCall(true)
	case opcode.JumpIfZ:
		return s.instJump(true)
	case opcode.ReturnIfZ:
		return s.instReturn(true)

	case opcode.Load:
		return s.instLoad(false)
	case opcode.Store:
		return s.instStore(false)
	case opcode.Load8:
		return s.instLoad8(false)
	case opcode.Store8:
		return s.instStore8(false)
	case opcode.Loads:
		return s.instLoad(true)
	case opcode.Stores:
		return s.instStore(true)
	case opcode.Loads8:
		return s.instLoad8(true)
	case opcode.Stores8:
		return s.instStore8(true)

	case opcode.Io:
		return s.instIo()

	default:
		return faultAt(s.IP(), ErrInvalidOpcode)
	}
}

// instUnary pops TOS, applies f, and pushes the result.
func (s *ExecutionState) instUnary(f func(cell.Cell) cell.Cell) error {
	v, err := s.dataPop()
	if err != nil {
		return err
	}
	s.VM.dataPush(f(v))
	return nil
}

// instBinary pops TOS then NOS and pushes f(tos, nos) — every binary
// arithmetic/comparison opcode receives the stack in this order, so `sub`
// computes tos-nos and `div` computes tos/nos.
func (s *ExecutionState) instBinary(f func(cell.Cell, cell.Cell) cell.Cell) error {
	tos, err := s.dataPop()
	if err != nil {
		return err
	}
	nos, err := s.dataPop()
	if err != nil {
		return err
	}
	s.VM.dataPush(f(tos, nos))
	return nil
}

func (s *ExecutionState) instLit() error {
	s.CurrentWordIndex++
	if uint32(len(s.VM.Image)) <= s.CurrentWordIndex {
		return faultAt(s.IP(), ErrIPOutOfBounds)
	}
	s.VM.dataPush(cell.Cell(s.VM.Image[s.CurrentWordIndex]))
	return nil
}

func (s *ExecutionState) instSext8() error {
	v, err := s.dataPop()
	if err != nil {
		return err
	}
	s.VM.dataPush(cell.SignExtend8(v))
	return nil
}

func (s *ExecutionState) instSext16() error {
	v, err := s.dataPop()
	if err != nil {
		return err
	}
	s.VM.dataPush(cell.SignExtend16(v))
	return nil
}

func (s *ExecutionState) instHalt() error {
	if len(s.VM.Data) > 0 && s.VM.Data[len(s.VM.Data)-1] == cell.True {
		s.dump()
	}
	return nil
}

func (s *ExecutionState) dump() {
	path := s.VM.CoreDumpPath
	if path == "" {
		path = defaultCoreDumpPath
	}
	_ = os.WriteFile(path, image.UnpackWords(s.VM.Image), 0o644)
}

func (s *ExecutionState) instDup() error {
	tos, err := s.dataPeek()
	if err != nil {
		return err
	}
	s.VM.dataPush(tos)
	return nil
}

func (s *ExecutionState) instDrop() error {
	_, err := s.dataPop()
	return err
}

func (s *ExecutionState) instSwap() error {
	tos, err := s.dataPop()
	if err != nil {
		return err
	}
	nos, err := s.dataPop()
	if err != nil {
		return err
	}
	s.VM.dataPush(tos)
	s.VM.dataPush(nos)
	return nil
}

func (s *ExecutionState) instMoveDataToAddr() error {
	v, err := s.dataPop()
	if err != nil {
		return err
	}
	s.VM.addressPush(v)
	return nil
}

func (s *ExecutionState) instMoveAddrToData() error {
	v, err := s.addressPop()
	if err != nil {
		return err
	}
	s.VM.dataPush(v)
	return nil
}

func (s *ExecutionState) instShift() error {
	amount, err := s.dataPop()
	if err != nil {
		return err
	}
	subject, err := s.dataPop()
	if err != nil {
		return err
	}
	s.VM.dataPush(cell.Shift(amount, subject))
	return nil
}

// jumpTarget translates a popped byte address into the (word, instruction)
// pair such that the *next* fetch executes the byte at that address.
func jumpTarget(address uint32) (word, instruction uint32) {
	if address != 0 && address%wordSize == 0 {
		return address/wordSize - 1, wordSize - 1
	}
	return address / wordSize, address%wordSize - 1
}

func (s *ExecutionState) instJump(ifZero bool) error {
	target, err := s.dataPop()
	if err != nil {
		return err
	}
	if ifZero {
		predicate, err := s.dataPop()
		if err != nil {
			return err
		}
		if predicate != 0 {
			return nil
		}
	}
	w, i := jumpTarget(target.Uint32())
	return s.ipSet(w, w, i)
}

func (s *ExecutionState) instCall(ifZero bool) error {
	target, err := s.dataPop()
	if err != nil {
		return err
	}
	if ifZero {
		predicate, err := s.dataPop()
		if err != nil {
			return err
		}
		if predicate != 0 {
			return nil
		}
	}
	s.VM.addressPush(cell.Cell(s.ipGetEncoded()))
	w, i := jumpTarget(target.Uint32())
	return s.ipSet(w, w, i)
}

func (s *ExecutionState) instReturn(ifZero bool) error {
	if ifZero {
		predicate, err := s.dataPeek()
		if err != nil {
			return err
		}
		if predicate != 0 {
			return nil
		}
		if _, err := s.dataPop(); err != nil {
			return err
		}
	}
	encoded, err := s.addressPop()
	if err != nil {
		return err
	}
	return s.ipSetEncoded(encoded.Uint32())
}

func (s *ExecutionState) instIo() error {
	command, err := s.dataPop()
	if err != nil {
		return err
	}
	deviceID, err := s.dataPop()
	if err != nil {
		return err
	}
	idx := int(deviceID.Uint32())
	if idx < 0 || idx >= len(s.VM.Devices) {
		s.VM.dataPush(deviceID)
		s.VM.dataPush(cell.Cell(device.ErrorSentinel))
		return nil
	}
	result := s.VM.Devices[idx].Ioctl(command.Uint32())
	s.VM.dataPush(deviceID)
	s.VM.dataPush(cell.Cell(result))
	return nil
}

// loadWord reads the word at a byte address. An aligned address reads its
// image word directly. A misaligned address (r = address%4 in 1..3) combines
// the two adjacent words with a shift of 2r bits, not 8r: mask =
// 0xFFFFFFFF>>shift, high = (word & mask) << shift, low = (next &^ mask) >>
// (8 - shift). For every such r the result is in general not the four
// little-endian bytes starting at address.
func (s *ExecutionState) loadWord(address uint32) cell.Cell {
	r := address % wordSize
	if r == 0 {
		return cell.Cell(s.VM.Image[address/wordSize])
	}
	shift := 2 * r
	mask := uint32(0xFFFFFFFF) >> shift
	high := (s.VM.Image[address/wordSize] & mask) << shift
	low := (s.VM.Image[address/wordSize+1] &^ mask) >> (8 - shift)
	return cell.Cell(high | low)
}

func (s *ExecutionState) storeWord(address uint32, value uint32) {
	r := address % wordSize
	if r == 0 {
		s.VM.Image[address/wordSize] = value
		return
	}
	shift := 2 * r
	mask := uint32(0xFFFFFFFF) >> shift
	low := value &^ mask
	high := value & mask
	s.VM.Image[address/wordSize] = (s.VM.Image[address/wordSize] & mask) | low
	s.VM.Image[address/wordSize+1] = (s.VM.Image[address/wordSize+1] & mask) | high
}

func (s *ExecutionState) instLoad(stream bool) error {
	addr, err := s.dataPop()
	if err != nil {
		return err
	}
	address := addr.Uint32()
	s.VM.dataPush(s.loadWord(address))
	if stream {
		s.VM.dataPush(cell.Cell(address + wordSize))
	}
	return nil
}

func (s *ExecutionState) instLoad8(stream bool) error {
	addr, err := s.dataPop()
	if err != nil {
		return err
	}
	address := addr.Uint32()
	word := s.VM.Image[address/wordSize]
	b := image.WordToBytes(word)[address%wordSize]
	s.VM.dataPush(cell.Cell(b))
	if stream {
		s.VM.dataPush(cell.Cell(address + 1))
	}
	return nil
}

func (s *ExecutionState) instStore(stream bool) error {
	value, err := s.dataPop()
	if err != nil {
		return err
	}
	addr, err := s.dataPop()
	if err != nil {
		return err
	}
	address := addr.Uint32()
	s.storeWord(address, value.Uint32())
	if stream {
		s.VM.dataPush(cell.Cell(address + wordSize))
	}
	return nil
}

func (s *ExecutionState) instStore8(stream bool) error {
	value, err := s.dataPop()
	if err != nil {
		return err
	}
	addr, err := s.dataPop()
	if err != nil {
		return err
	}
	address := addr.Uint32()
	word := s.VM.Image[address/wordSize]
	shift := (address % wordSize) * 8
	mask := uint32(0xFF) << shift
	s.VM.Image[address/wordSize] = (word &^ mask) | (value.Uint32() << shift)
	if stream {
		s.VM.dataPush(cell.Cell(address + 1))
	}
	return nil
}

// sync drains every device's pending DMA requests, in registration order,
// once per completed step.
func (s *ExecutionState) sync() {
	for _, d := range s.VM.Devices {
		for {
			req, ok := d.DMAPoll()
			if !ok {
				break
			}
			switch req.Kind {
			case device.DMARead:
				d.DMAReadResponse(req.Address, s.VM.Image[req.Address/wordSize])
			case device.DMAWrite:
				s.VM.Image[req.Address/wordSize] = req.Value
				d.DMAWriteResponse(req.Address)
			}
		}
	}
}
