package machine

import (
	. "github.com/smartystreets/goconvey/convey"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/gpio/gpiotest"
	"sync"
	"testing"
	"time"
)

var (
	testEnablePin    = &gpiotest.Pin{N: "TS_ENABLE", Num: 9001}
	testDirectionPin = &gpiotest.Pin{N: "TS_DIRECTION", Num: 9002}
	testTouchPin     = &gpiotest.Pin{N: "TS_TOUCH", Num: 9003}
	testBuzzerPin    = &gpiotest.Pin{N: "TS_BUZZER", Num: 9004}

	registerPins sync.Once
)

func registerTestPins() {
	registerPins.Do(func() {
		for _, p := range []*gpiotest.Pin{testEnablePin, testDirectionPin, testTouchPin, testBuzzerPin} {
			if err := gpioreg.Register(p); err != nil {
				panic(err)
			}
		}
	})
}

func setLevel(p *gpiotest.Pin, l gpio.Level) {
	p.Lock()
	p.L = l
	p.Unlock()
}

func level(p *gpiotest.Pin) gpio.Level {
	p.Lock()
	defer p.Unlock()
	return p.L
}

func TestRaspberryMachine(t *testing.T) {
	registerTestPins()

	Convey("Given a raspberry machine with test pins", t, func() {
		m := NewRaspberryMachine(&RaspberryMachineConfig{
			BuzzerPin:    "TS_BUZZER",
			BeepDuration: time.Millisecond,
		})

		Convey("a reversed motor drives the direction pin low", func() {
			motor, err := m.Motor("TS_ENABLE/TS_DIRECTION")
			So(err, ShouldBeNil)

			So(motor.SetSpeed(-10), ShouldBeNil)
			So(motor.RunForever(), ShouldBeNil)
			So(level(testEnablePin), ShouldEqual, gpio.High)
			So(level(testDirectionPin), ShouldEqual, gpio.Low)

			So(motor.Stop(), ShouldBeNil)
			So(level(testEnablePin), ShouldEqual, gpio.Low)
		})

		Convey("a forward motor drives the direction pin high", func() {
			motor, err := m.Motor("TS_ENABLE/TS_DIRECTION")
			So(err, ShouldBeNil)

			So(motor.SetSpeed(10), ShouldBeNil)
			So(motor.RunForever(), ShouldBeNil)
			So(level(testDirectionPin), ShouldEqual, gpio.High)
			So(motor.Stop(), ShouldBeNil)
		})

		Convey("unknown pins are not found", func() {
			_, err := m.Motor("TS_NOPE")
			So(IsDeviceNotFound(err), ShouldBeTrue)

			_, err = m.Motor("TS_ENABLE/TS_NOPE")
			So(IsDeviceNotFound(err), ShouldBeTrue)

			_, err = m.TouchSensor("TS_NOPE")
			So(IsDeviceNotFound(err), ShouldBeTrue)

			_, err = NewRaspberryMachine(&RaspberryMachineConfig{BuzzerPin: "TS_NOPE"}).Sound()
			So(IsDeviceNotFound(err), ShouldBeTrue)
		})

		Convey("the touch sensor reads a high pin as pressed", func() {
			touch, err := m.TouchSensor("TS_TOUCH")
			So(err, ShouldBeNil)

			setLevel(testTouchPin, gpio.Low)
			pressed, err := touch.IsPressed()
			So(err, ShouldBeNil)
			So(pressed, ShouldBeFalse)

			setLevel(testTouchPin, gpio.High)
			pressed, err = touch.IsPressed()
			So(err, ShouldBeNil)
			So(pressed, ShouldBeTrue)
		})

		Convey("a beep leaves the buzzer off", func() {
			sound, err := m.Sound()
			So(err, ShouldBeNil)

			So(sound.Beep(), ShouldBeNil)
			So(level(testBuzzerPin), ShouldEqual, gpio.Low)
		})
	})
}
