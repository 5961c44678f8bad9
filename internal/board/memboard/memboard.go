// Package memboard is the in-memory reference board implementation used by
// tests and the simulator binary, grounded on the teacher's backend.Memory
// (sharded in-memory backend) generalized from one flat byte slice to the
// set of peripheral interfaces under internal/board.
package memboard

import (
	"context"
	"sort"
	"sync"

	"github.com/wasefire/wfcore/internal/board"
	"github.com/wasefire/wfcore/internal/board/fingerprint"
	"github.com/wasefire/wfcore/internal/board/platformprotocol"
	"github.com/wasefire/wfcore/internal/board/store"
	"github.com/wasefire/wfcore/internal/board/uart"
	"github.com/wasefire/wfcore/internal/board/usbserial"
	"github.com/wasefire/wfcore/internal/event"
)

// Board is the full in-memory reference board: one store, a fixed set of
// UARTs, one USB serial peripheral, one platform protocol transport, and
// one fingerprint matcher, all feeding a single event channel that Wait
// drains.
type Board struct {
	mu       sync.Mutex
	events   chan event.Event
	store    *Store
	uarts    []*Uart
	usb      *USBSerial
	protocol *Protocol
	finger   *Fingerprint
}

// New creates a board with n UART peripherals and a template length for
// its fingerprint matcher.
func New(nUart int, templateLength int) *Board {
	b := &Board{events: make(chan event.Event, 32)}
	b.store = &Store{data: make(map[uint16][]byte)}
	b.uarts = make([]*Uart, nUart)
	for i := range b.uarts {
		b.uarts[i] = &Uart{index: uint32(i), board: b}
	}
	b.usb = &USBSerial{board: b}
	b.protocol = &Protocol{board: b, in: make(chan []byte, 8)}
	b.finger = &Fingerprint{board: b, templateLength: templateLength, templates: make(map[string][]byte)}
	return b
}

// Store returns the board's key-value store.
func (b *Board) Store() *Store { return b.store }

// Uart returns the index'th UART peripheral.
func (b *Board) Uart(index int) *Uart { return b.uarts[index] }

// USBSerial returns the board's USB serial peripheral.
func (b *Board) USBSerial() *USBSerial { return b.usb }

// PlatformProtocol returns the board's platform protocol transport.
func (b *Board) PlatformProtocol() *Protocol { return b.protocol }

// Fingerprint returns the board's fingerprint matcher.
func (b *Board) Fingerprint() *Fingerprint { return b.finger }

// push queues an event for Wait to return, dropping it if the queue is
// momentarily full (the scheduler's own Registry is the durable bound).
func (b *Board) push(e event.Event) {
	select {
	case b.events <- e:
	default:
	}
}

// Wait implements board.Board.
func (b *Board) Wait(ctx context.Context) (event.Event, error) {
	select {
	case e := <-b.events:
		return e, nil
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	}
}

// Events implements board.Board.
func (b *Board) Events() <-chan event.Event { return b.events }

// SignalProtocolReady queues a Protocol readiness event on the board's
// channel. It exists for callers that swap the in-memory Protocol
// peripheral for a real transport (internal/transport): the transport has
// no other way to reach the board's event channel, since push is
// unexported and every other peripheral signals readiness through its own
// Inject method.
func (b *Board) SignalProtocolReady() {
	b.push(event.Event{Kind: event.KindProtocol})
}

var _ board.Board = (*Board)(nil)

// Store is the in-memory key-value store.
type Store struct {
	mu   sync.RWMutex
	data map[uint16][]byte
}

func (s *Store) Insert(key uint16, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	s.data[key] = buf
	return nil
}

func (s *Store) Find(key uint16) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *Store) Remove(key uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) Keys() ([]uint16, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]uint16, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

var _ store.Store = (*Store)(nil)

// Uart is one in-memory UART peripheral, backed by two byte queues.
type Uart struct {
	mu      sync.Mutex
	index   uint32
	board   *Board
	started bool
	baud    uint32
	rx, tx  []byte
}

func (u *Uart) Start() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.started = true
	return nil
}

func (u *Uart) Stop() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.started = false
	return nil
}

func (u *Uart) SetBaudrate(baudrate uint32) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.baud = baudrate
	return nil
}

func (u *Uart) Read(buf []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := copy(buf, u.rx)
	u.rx = u.rx[n:]
	return n, nil
}

func (u *Uart) Write(buf []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tx = append(u.tx, buf...)
	return len(buf), nil
}

// Inject feeds bytes into the UART's receive queue, as a test harness or
// the simulator's serial bridge would, and pushes a read-ready event.
func (u *Uart) Inject(data []byte) {
	u.mu.Lock()
	u.rx = append(u.rx, data...)
	u.mu.Unlock()
	u.board.push(event.Event{Kind: event.KindUart, ID: u.index, Direction: event.DirectionRead})
}

var _ uart.Uart = (*Uart)(nil)

// USBSerial is the in-memory USB serial peripheral.
type USBSerial struct {
	mu      sync.Mutex
	board   *Board
	enabled bool
	rx, tx  []byte
}

func (s *USBSerial) Read(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(buf, s.rx)
	s.rx = s.rx[n:]
	return n, nil
}

func (s *USBSerial) Write(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tx = append(s.tx, buf...)
	return len(buf), nil
}

func (s *USBSerial) SetEventsEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

func (s *USBSerial) Inject(data []byte) {
	s.mu.Lock()
	s.rx = append(s.rx, data...)
	enabled := s.enabled
	s.mu.Unlock()
	if enabled {
		s.board.push(event.Event{Kind: event.KindUsbSerial, Direction: event.DirectionRead})
	}
}

var _ usbserial.USBSerial = (*USBSerial)(nil)

// Protocol is the in-memory platform protocol transport.
type Protocol struct {
	board *Board
	in    chan []byte
	mu    sync.Mutex
	out   [][]byte
	vendr [][]byte
}

func (p *Protocol) Read() ([]byte, bool, error) {
	select {
	case payload := <-p.in:
		return payload, true, nil
	default:
		return nil, false, nil
	}
}

func (p *Protocol) Write(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = append(p.out, append([]byte(nil), payload...))
	return nil
}

func (p *Protocol) Vendor(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vendr = append(p.vendr, append([]byte(nil), payload...))
	return nil
}

// Inject enqueues a request payload as if received from the host, and
// signals the scheduler with a protocol event.
func (p *Protocol) Inject(payload []byte) {
	p.in <- payload
	p.board.push(event.Event{Kind: event.KindProtocol})
}

// Responses drains every response written so far, for test assertions.
func (p *Protocol) Responses() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.out
	p.out = nil
	return out
}

var _ platformprotocol.PlatformProtocol = (*Protocol)(nil)

// Fingerprint is the in-memory fingerprint matcher: enrollment always
// succeeds after one synthetic touch, identification matches an arbitrary
// enrolled template (or the one requested, if still enrolled).
type Fingerprint struct {
	board          *Board
	mu             sync.Mutex
	templateLength int
	templates      map[string][]byte
	nextID         uint32
	threshold      float32
	historyLen     int
	enrolling      bool
	identifying    bool
}

func (f *Fingerprint) TemplateLength() int { return f.templateLength }

func (f *Fingerprint) Enroll(onStep func(fingerprint.EnrollProgress), onDone func([]byte, error)) error {
	f.mu.Lock()
	if f.enrolling || f.identifying {
		f.mu.Unlock()
		return board.ErrTrap
	}
	f.enrolling = true
	f.mu.Unlock()

	go func() {
		onStep(fingerprint.EnrollProgress{Detected: 1, Remaining: 0})
		f.mu.Lock()
		if !f.enrolling {
			f.mu.Unlock() // aborted: onDone is not called
			return
		}
		id := f.nextID
		f.nextID++
		template := make([]byte, f.templateLength)
		template[0] = byte(id)
		f.templates[string(template)] = template
		f.enrolling = false
		f.mu.Unlock()
		onDone(template, nil)
	}()
	return nil
}

func (f *Fingerprint) AbortEnroll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrolling = false
	return nil
}

func (f *Fingerprint) Identify(template []byte, onDone func(bool, []byte, error)) error {
	f.mu.Lock()
	if f.enrolling || f.identifying {
		f.mu.Unlock()
		return board.ErrTrap
	}
	f.identifying = true
	f.mu.Unlock()

	go func() {
		f.mu.Lock()
		if !f.identifying {
			f.mu.Unlock() // aborted: onDone is not called
			return
		}
		var match []byte
		if template != nil {
			if _, ok := f.templates[string(template)]; ok {
				match = template
			}
		} else {
			for _, t := range f.templates {
				match = t
				break
			}
		}
		f.identifying = false
		f.mu.Unlock()
		onDone(match != nil, match, nil)
	}()
	return nil
}

func (f *Fingerprint) AbortIdentify() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identifying = false
	return nil
}

func (f *Fingerprint) DeleteTemplate(template []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if template == nil {
		f.templates = make(map[string][]byte)
		return nil
	}
	delete(f.templates, string(template))
	return nil
}

func (f *Fingerprint) ListTemplates() ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, 0, len(f.templates))
	for _, t := range f.templates {
		out = append(out, t)
	}
	return out, nil
}

func (f *Fingerprint) Threshold() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threshold
}

func (f *Fingerprint) SetThreshold(v float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = v
}

func (f *Fingerprint) HistoryLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyLen
}

func (f *Fingerprint) SetHistoryLen(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyLen = n
}

var _ fingerprint.Fingerprint = (*Fingerprint)(nil)
