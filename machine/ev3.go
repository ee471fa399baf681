package machine

import (
	"github.com/go-errors/errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	ev3PortPrefix = "ev3-ports:"

	tachoMotorClass = "tacho-motor"
	legoSensorClass = "lego-sensor"

	DefaultEv3SysfsPath   = "/sys"
	DefaultEv3SoundDevice = "/dev/input/by-path/platform-sound-event"

	DefaultBeepFrequency = 440
	DefaultBeepDuration  = 100 * time.Millisecond
)

var touchDrivers = map[string]bool{
	"lego-ev3-touch": true,
	"lego-nxt-touch": true,
}

// Compile time check for protocol compatibility
var _ Machine = (*Ev3Machine)(nil)

type Ev3MachineConfig struct {
	SysfsPath     string
	SoundDevice   string
	BeepFrequency int
	BeepDuration  time.Duration
}

// Ev3Machine talks to an ev3dev brick through the sysfs classes of the
// lego drivers.
type Ev3Machine struct {
	sysfsPath     string
	soundDevice   string
	beepFrequency int
	beepDuration  time.Duration
}

func NewEv3Machine(config *Ev3MachineConfig) *Ev3Machine {
	m := &Ev3Machine{
		sysfsPath:     config.SysfsPath,
		soundDevice:   config.SoundDevice,
		beepFrequency: config.BeepFrequency,
		beepDuration:  config.BeepDuration,
	}

	if m.sysfsPath == "" {
		m.sysfsPath = DefaultEv3SysfsPath
	}

	if m.soundDevice == "" {
		m.soundDevice = DefaultEv3SoundDevice
	}

	if m.beepFrequency == 0 {
		m.beepFrequency = DefaultBeepFrequency
	}

	if m.beepDuration == 0 {
		m.beepDuration = DefaultBeepDuration
	}

	return m
}

func (m *Ev3Machine) Start() error {
	class := filepath.Join(m.sysfsPath, "class")

	if _, err := os.Stat(class); err != nil {
		return errors.Errorf("Could not access ev3dev sysfs at %v: %v", class, err)
	}

	return nil
}

func (m *Ev3Machine) Stop() error {
	return nil
}

func (m *Ev3Machine) Motor(port string) (Motor, error) {
	path, err := m.findDevice(tachoMotorClass, "motor", port)
	if err != nil {
		return nil, err
	}

	return &ev3Motor{port: port, path: path}, nil
}

func (m *Ev3Machine) TouchSensor(port string) (TouchSensor, error) {
	path, err := m.findDevice(legoSensorClass, "sensor", port)
	if err != nil {
		return nil, err
	}

	driver, err := readAttr(path, "driver_name")
	if err != nil || !touchDrivers[driver] {
		return nil, &DeviceNotFoundError{Kind: "touch sensor", Port: port}
	}

	return &ev3TouchSensor{port: port, path: path}, nil
}

func (m *Ev3Machine) Sound() (Sound, error) {
	if _, err := os.Stat(m.soundDevice); err != nil {
		return nil, &DeviceNotFoundError{Kind: "sound"}
	}

	return &ev3Sound{
		device:    m.soundDevice,
		frequency: m.beepFrequency,
		duration:  m.beepDuration,
	}, nil
}

// findDevice returns the sysfs directory of the device in class whose
// address matches port.
func (m *Ev3Machine) findDevice(class string, prefix string, port string) (string, error) {
	address := port
	if !strings.HasPrefix(address, ev3PortPrefix) {
		address = ev3PortPrefix + address
	}

	kind := strings.Replace(class, "-", " ", -1)

	dirs, err := filepath.Glob(filepath.Join(m.sysfsPath, "class", class, prefix+"*"))
	if err != nil {
		return "", &DeviceNotFoundError{Kind: kind, Port: port}
	}

	for _, dir := range dirs {
		a, err := readAttr(dir, "address")
		if err != nil {
			continue
		}

		if a == address {
			return dir, nil
		}
	}

	return "", &DeviceNotFoundError{Kind: kind, Port: port}
}

type ev3Motor struct {
	port string
	path string
}

func (m *ev3Motor) Port() string {
	return m.port
}

func (m *ev3Motor) SetSpeed(speed int) error {
	return m.write("speed_sp", strconv.Itoa(speed))
}

func (m *ev3Motor) RunForever() error {
	return m.write("command", "run-forever")
}

// Stop applies whatever stop_action the driver currently holds.
func (m *ev3Motor) Stop() error {
	return m.write("command", "stop")
}

func (m *ev3Motor) write(attr string, value string) error {
	if err := writeAttr(m.path, attr, value); err != nil {
		return &CommandRejectedError{Port: m.port, Command: attr + "=" + value, Err: err}
	}

	return nil
}

type ev3TouchSensor struct {
	port string
	path string
}

func (s *ev3TouchSensor) Port() string {
	return s.port
}

func (s *ev3TouchSensor) IsPressed() (bool, error) {
	raw, err := readAttr(s.path, "value0")
	if err != nil {
		return false, &CommandRejectedError{Port: s.port, Command: "read value0", Err: err}
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return false, &CommandRejectedError{Port: s.port, Command: "read value0", Err: err}
	}

	return value != 0, nil
}

func readAttr(dir string, attr string) (string, error) {
	b, err := ioutil.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(b)), nil
}

func writeAttr(dir string, attr string, value string) error {
	f, err := os.OpenFile(filepath.Join(dir, attr), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(value); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
