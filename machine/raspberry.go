package machine

import (
	"github.com/go-errors/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
	"strings"
	"time"
)

// Compile time check for protocol compatibility
var _ Machine = (*RaspberryMachine)(nil)

type RaspberryMachineConfig struct {
	BuzzerPin    string
	BeepDuration time.Duration
}

// RaspberryMachine drives a motor driver, a touch button and a buzzer
// connected to GPIO pins. Ports are periph pin names. A motor port may
// name a direction pin after the enable pin, as in "GPIO17/GPIO27".
type RaspberryMachine struct {
	buzzerPin    string
	beepDuration time.Duration
}

func NewRaspberryMachine(config *RaspberryMachineConfig) *RaspberryMachine {
	m := &RaspberryMachine{
		buzzerPin:    config.BuzzerPin,
		beepDuration: config.BeepDuration,
	}

	if m.beepDuration == 0 {
		m.beepDuration = DefaultBeepDuration
	}

	return m
}

func (m *RaspberryMachine) Start() error {
	if _, err := host.Init(); err != nil {
		return errors.Errorf("Could not initialize periph: %v", err)
	}

	return nil
}

func (m *RaspberryMachine) Stop() error {
	return nil
}

func (m *RaspberryMachine) Motor(port string) (Motor, error) {
	pins := strings.SplitN(port, "/", 2)

	enable := gpioreg.ByName(pins[0])
	if enable == nil {
		return nil, &DeviceNotFoundError{Kind: "motor", Port: port}
	}

	motor := &gpioMotor{port: port, enable: enable}

	if len(pins) == 2 {
		motor.direction = gpioreg.ByName(pins[1])
		if motor.direction == nil {
			return nil, &DeviceNotFoundError{Kind: "motor", Port: port}
		}
	}

	return motor, nil
}

func (m *RaspberryMachine) TouchSensor(port string) (TouchSensor, error) {
	pin := gpioreg.ByName(port)
	if pin == nil {
		return nil, &DeviceNotFoundError{Kind: "touch sensor", Port: port}
	}

	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, &CommandRejectedError{Port: port, Command: "configure input", Err: err}
	}

	return &gpioTouchSensor{port: port, pin: pin}, nil
}

func (m *RaspberryMachine) Sound() (Sound, error) {
	pin := gpioreg.ByName(m.buzzerPin)
	if pin == nil {
		return nil, &DeviceNotFoundError{Kind: "sound", Port: m.buzzerPin}
	}

	return &gpioBuzzer{pin: pin, duration: m.beepDuration}, nil
}

type gpioMotor struct {
	port      string
	enable    gpio.PinIO
	direction gpio.PinIO
	speed     int
}

func (m *gpioMotor) Port() string {
	return m.port
}

// SetSpeed only records the speed. The driver board has no speed input,
// so any non-zero speed runs the motor at full power.
func (m *gpioMotor) SetSpeed(speed int) error {
	m.speed = speed
	return nil
}

func (m *gpioMotor) RunForever() error {
	// without a direction pin the motor always turns the same way
	if m.direction != nil {
		level := gpio.High
		if m.speed < 0 {
			level = gpio.Low
		}

		if err := m.direction.Out(level); err != nil {
			return &CommandRejectedError{Port: m.port, Command: "run-forever", Err: err}
		}
	}

	if err := m.enable.Out(gpio.Level(m.speed != 0)); err != nil {
		return &CommandRejectedError{Port: m.port, Command: "run-forever", Err: err}
	}

	return nil
}

func (m *gpioMotor) Stop() error {
	if err := m.enable.Out(gpio.Low); err != nil {
		return &CommandRejectedError{Port: m.port, Command: "stop", Err: err}
	}

	return nil
}

type gpioTouchSensor struct {
	port string
	pin  gpio.PinIO
}

func (s *gpioTouchSensor) Port() string {
	return s.port
}

func (s *gpioTouchSensor) IsPressed() (bool, error) {
	return s.pin.Read() == gpio.High, nil
}

type gpioBuzzer struct {
	pin      gpio.PinIO
	duration time.Duration
}

func (b *gpioBuzzer) Beep() error {
	if err := b.pin.Out(gpio.High); err != nil {
		return &CommandRejectedError{Port: b.pin.Name(), Command: "beep", Err: err}
	}

	time.Sleep(b.duration)

	if err := b.pin.Out(gpio.Low); err != nil {
		return &CommandRejectedError{Port: b.pin.Name(), Command: "beep", Err: err}
	}

	return nil
}
