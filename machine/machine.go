package machine

// Machine binds the devices attached to a brick by port.
type Machine interface {
	Start() error
	Stop() error
	Motor(port string) (Motor, error)
	TouchSensor(port string) (TouchSensor, error)
	Sound() (Sound, error)
}

// Motor is a rotary actuator attached to an output port.
type Motor interface {
	Port() string
	// SetSpeed sets the target speed. The sign gives the direction.
	SetSpeed(speed int) error
	// RunForever runs the motor at the target speed until Stop is called.
	RunForever() error
	Stop() error
}

// TouchSensor is a binary sensor attached to an input port.
type TouchSensor interface {
	Port() string
	IsPressed() (bool, error)
}

// Sound emits a short fixed tone.
type Sound interface {
	Beep() error
}
