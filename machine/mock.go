package machine

import (
	"encoding/json"
	"fmt"
	"github.com/go-errors/errors"
	"github.com/gorilla/mux"
	"net"
	"net/http"
	"sync"
)

// Compile time check for protocol compatibility
var _ Machine = (*MockMachine)(nil)

// MockMachine simulates a brick in memory. Every call on a bound device
// is recorded in a journal shared by all devices of the machine. When a
// listen address is given, the virtual touch sensors can be pressed over
// HTTP.
type MockMachine struct {
	listen   string
	listener net.Listener
	router   *mux.Router
	log      Logger

	mu       sync.Mutex
	stopping bool
	journal  []string
	missing  map[string]bool
	rejected map[string]bool
	motors   map[string]*MockMotor
	touches  map[string]*MockTouchSensor
	noSound  bool
}

// MockMachineConfig configures a mock machine. Touch controls are only
// served when Listen is set.
type MockMachineConfig struct {
	Listen string
	Logger Logger
}

func NewMockMachine(config *MockMachineConfig) *MockMachine {
	m := &MockMachine{
		listen:   config.Listen,
		missing:  make(map[string]bool),
		rejected: make(map[string]bool),
		motors:   make(map[string]*MockMotor),
		touches:  make(map[string]*MockTouchSensor),
	}

	if config.Logger != nil {
		m.log = config.Logger
	} else {
		m.log = noopLogger{}
	}

	m.router = mux.NewRouter()
	m.router.HandleFunc("/state", m.handleGetState).Methods(http.MethodGet)
	m.router.HandleFunc("/touch/{port}", m.handleTouch(true)).Methods(http.MethodPost)
	m.router.HandleFunc("/touch/{port}", m.handleTouch(false)).Methods(http.MethodDelete)

	return m
}

func (m *MockMachine) Start() error {
	if m.listen == "" {
		return nil
	}

	lis, err := net.Listen("tcp", m.listen)
	if err != nil {
		return errors.Errorf("Could not listen on %v: %v", m.listen, err)
	}

	m.listener = lis

	go m.serve(lis)

	return nil
}

func (m *MockMachine) Stop() error {
	if m.listener == nil {
		return nil
	}

	m.mu.Lock()
	m.stopping = true
	m.mu.Unlock()

	return m.listener.Close()
}

// serve blocks until lis fails. Failures after Stop are expected.
func (m *MockMachine) serve(lis net.Listener) {
	err := http.Serve(lis, m.router)

	m.mu.Lock()
	stopping := m.stopping
	m.mu.Unlock()

	if err != nil && !stopping {
		m.log.Errorf("Could not serve touch controls: %v", err)
	}
}

// Handler exposes the touch control endpoint.
func (m *MockMachine) Handler() http.Handler {
	return m.router
}

// Detach makes binding to port fail with a DeviceNotFoundError.
func (m *MockMachine) Detach(port string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.missing[port] = true
}

// DetachSound makes Sound fail with a DeviceNotFoundError.
func (m *MockMachine) DetachSound() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.noSound = true
}

// Reject makes the given command on port fail with a CommandRejectedError.
// Commands are named as in the journal, e.g. "run-forever" or "set-speed -10".
func (m *MockMachine) Reject(port string, command string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rejected[port+" "+command] = true
}

// Journal returns a copy of all recorded calls in order.
func (m *MockMachine) Journal() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	journal := make([]string, len(m.journal))
	copy(journal, m.journal)

	return journal
}

// Touch returns the virtual touch sensor on port, creating it if needed.
func (m *MockMachine) Touch(port string) *MockTouchSensor {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.touch(port)
}

// MotorOn returns the virtual motor on port, creating it if needed.
func (m *MockMachine) MotorOn(port string) *MockMotor {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.motor(port)
}

func (m *MockMachine) Motor(port string) (Motor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("bind motor %s", port)

	if m.missing[port] {
		return nil, &DeviceNotFoundError{Kind: "motor", Port: port}
	}

	return m.motor(port), nil
}

func (m *MockMachine) TouchSensor(port string) (TouchSensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("bind touch %s", port)

	if m.missing[port] {
		return nil, &DeviceNotFoundError{Kind: "touch sensor", Port: port}
	}

	return m.touch(port), nil
}

func (m *MockMachine) Sound() (Sound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("bind sound")

	if m.noSound {
		return nil, &DeviceNotFoundError{Kind: "sound"}
	}

	return &MockSound{machine: m}, nil
}

func (m *MockMachine) motor(port string) *MockMotor {
	motor, ok := m.motors[port]
	if !ok {
		motor = &MockMotor{port: port, machine: m}
		m.motors[port] = motor
	}

	return motor
}

func (m *MockMachine) touch(port string) *MockTouchSensor {
	touch, ok := m.touches[port]
	if !ok {
		touch = &MockTouchSensor{port: port, machine: m}
		m.touches[port] = touch
	}

	return touch
}

func (m *MockMachine) record(format string, args ...interface{}) {
	m.journal = append(m.journal, fmt.Sprintf(format, args...))
}

// command records a command and reports whether it was rejected.
// The caller must hold the lock.
func (m *MockMachine) command(port string, command string) error {
	m.record("%s %s", port, command)

	if m.rejected[port+" "+command] {
		return &CommandRejectedError{Port: port, Command: command, Err: errors.New("device disconnected")}
	}

	return nil
}

type mockState struct {
	Motors  map[string]mockMotorState `json:"motors"`
	Touches map[string]bool           `json:"touches"`
}

type mockMotorState struct {
	Speed   int  `json:"speed"`
	Running bool `json:"running"`
}

func (m *MockMachine) handleGetState(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()

	state := mockState{
		Motors:  make(map[string]mockMotorState),
		Touches: make(map[string]bool),
	}

	for port, motor := range m.motors {
		state.Motors[port] = mockMotorState{Speed: motor.speed, Running: motor.running}
	}

	for port, touch := range m.touches {
		state.Touches[port] = touch.pressed
	}

	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&state)
}

func (m *MockMachine) handleTouch(pressed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		port := mux.Vars(r)["port"]

		m.mu.Lock()
		m.touch(port).pressed = pressed
		m.mu.Unlock()

		w.WriteHeader(http.StatusNoContent)
	}
}

type MockMotor struct {
	machine *MockMachine
	port    string
	speed   int
	running bool
}

func (mm *MockMotor) Port() string {
	return mm.port
}

func (mm *MockMotor) SetSpeed(speed int) error {
	mm.machine.mu.Lock()
	defer mm.machine.mu.Unlock()

	if err := mm.machine.command(mm.port, fmt.Sprintf("set-speed %d", speed)); err != nil {
		return err
	}

	mm.speed = speed

	return nil
}

func (mm *MockMotor) RunForever() error {
	mm.machine.mu.Lock()
	defer mm.machine.mu.Unlock()

	if err := mm.machine.command(mm.port, "run-forever"); err != nil {
		return err
	}

	mm.running = true

	return nil
}

func (mm *MockMotor) Stop() error {
	mm.machine.mu.Lock()
	defer mm.machine.mu.Unlock()

	if err := mm.machine.command(mm.port, "stop"); err != nil {
		return err
	}

	mm.running = false

	return nil
}

func (mm *MockMotor) Running() bool {
	mm.machine.mu.Lock()
	defer mm.machine.mu.Unlock()

	return mm.running
}

func (mm *MockMotor) Speed() int {
	mm.machine.mu.Lock()
	defer mm.machine.mu.Unlock()

	return mm.speed
}

// MockTouchSensor returns scripted readings first and its pressed state
// once the script is used up.
type MockTouchSensor struct {
	machine  *MockMachine
	port     string
	readings []bool
	pressed  bool
	reads    int
}

func (mt *MockTouchSensor) Port() string {
	return mt.port
}

// Script queues readings returned by the next calls to IsPressed.
func (mt *MockTouchSensor) Script(readings ...bool) {
	mt.machine.mu.Lock()
	defer mt.machine.mu.Unlock()

	mt.readings = append(mt.readings, readings...)
}

func (mt *MockTouchSensor) Press() {
	mt.machine.mu.Lock()
	defer mt.machine.mu.Unlock()

	mt.pressed = true
}

func (mt *MockTouchSensor) Release() {
	mt.machine.mu.Lock()
	defer mt.machine.mu.Unlock()

	mt.pressed = false
}

// Reads returns how often the sensor was read.
func (mt *MockTouchSensor) Reads() int {
	mt.machine.mu.Lock()
	defer mt.machine.mu.Unlock()

	return mt.reads
}

func (mt *MockTouchSensor) IsPressed() (bool, error) {
	mt.machine.mu.Lock()
	defer mt.machine.mu.Unlock()

	if err := mt.machine.command(mt.port, "read"); err != nil {
		return false, err
	}

	mt.reads++

	if len(mt.readings) > 0 {
		pressed := mt.readings[0]
		mt.readings = mt.readings[1:]
		return pressed, nil
	}

	return mt.pressed, nil
}

type MockSound struct {
	machine *MockMachine
}

func (ms *MockSound) Beep() error {
	ms.machine.mu.Lock()
	defer ms.machine.mu.Unlock()

	return ms.machine.command("sound", "beep")
}
