package machine

import (
	"encoding/json"
	"fmt"
	"github.com/go-errors/errors"
	. "github.com/smartystreets/goconvey/convey"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

type failingListener struct{}

func (failingListener) Accept() (net.Conn, error) {
	return nil, errors.New("accept failed")
}

func (failingListener) Close() error {
	return nil
}

func (failingListener) Addr() net.Addr {
	return &net.TCPAddr{}
}

type recordingLogger struct {
	errors []string
}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func TestMockMachine(t *testing.T) {
	Convey("Given a mock machine", t, func() {
		m := NewMockMachine(&MockMachineConfig{})
		So(m.Start(), ShouldBeNil)
		defer m.Stop()

		Convey("scripted readings come before the pressed state", func() {
			touch, err := m.TouchSensor("in1")
			So(err, ShouldBeNil)

			m.Touch("in1").Script(true, false)
			m.Touch("in1").Press()

			for _, want := range []bool{true, false, true, true} {
				pressed, err := touch.IsPressed()
				So(err, ShouldBeNil)
				So(pressed, ShouldEqual, want)
			}

			So(m.Touch("in1").Reads(), ShouldEqual, 4)
		})

		Convey("rejected commands leave the motor state alone", func() {
			m.Reject("outA", "run-forever")

			motor, err := m.Motor("outA")
			So(err, ShouldBeNil)

			So(IsCommandRejected(motor.RunForever()), ShouldBeTrue)
			So(m.MotorOn("outA").Running(), ShouldBeFalse)
			So(m.Journal(), ShouldResemble, []string{"bind motor outA", "outA run-forever"})
		})

		Convey("the touch endpoint presses and releases the sensor", func() {
			server := httptest.NewServer(m.Handler())
			defer server.Close()

			touch, err := m.TouchSensor("in1")
			So(err, ShouldBeNil)

			res, err := http.Post(server.URL+"/touch/in1", "text/plain", nil)
			So(err, ShouldBeNil)
			So(res.StatusCode, ShouldEqual, http.StatusNoContent)

			pressed, _ := touch.IsPressed()
			So(pressed, ShouldBeTrue)

			req, _ := http.NewRequest(http.MethodDelete, server.URL+"/touch/in1", nil)
			res, err = http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			So(res.StatusCode, ShouldEqual, http.StatusNoContent)

			pressed, _ = touch.IsPressed()
			So(pressed, ShouldBeFalse)
		})

		Convey("the state endpoint reports motors", func() {
			motor, _ := m.Motor("outA")
			So(motor.SetSpeed(-10), ShouldBeNil)
			So(motor.RunForever(), ShouldBeNil)

			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)

			state := mockState{}
			So(json.Unmarshal(rec.Body.Bytes(), &state), ShouldBeNil)
			So(state.Motors["outA"], ShouldResemble, mockMotorState{Speed: -10, Running: true})
		})
	})

	Convey("Given a mock machine with a listen address", t, func() {
		m := NewMockMachine(&MockMachineConfig{Listen: "127.0.0.1:0"})

		Convey("it starts and stops its listener", func() {
			So(m.Start(), ShouldBeNil)
			So(m.Stop(), ShouldBeNil)
		})
	})

	Convey("Given a mock machine with a logger", t, func() {
		logger := &recordingLogger{}
		m := NewMockMachine(&MockMachineConfig{Logger: logger})

		Convey("a failing listener is logged", func() {
			m.serve(failingListener{})

			So(len(logger.errors), ShouldEqual, 1)
			So(logger.errors[0], ShouldContainSubstring, "accept failed")
		})

		Convey("a listener failing after stop is not logged", func() {
			m.listener = failingListener{}
			So(m.Stop(), ShouldBeNil)

			m.serve(failingListener{})

			So(logger.errors, ShouldBeEmpty)
		})
	})
}
