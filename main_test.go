package main

import (
	"context"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/the-lightning-land/touchstop/machine"
	"github.com/the-lightning-land/touchstop/rundb"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// pressOverHandler presses the touch sensor on port through the touch
// control endpoint of m.
func pressOverHandler(m *machine.MockMachine, port string) int {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/touch/"+port, nil))
	return rec.Code
}

// freeAddr returns a local address nothing listens on.
func freeAddr() (string, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}

	defer lis.Close()

	return lis.Addr().String(), nil
}

// waitForRead blocks until the controller read the touch sensor on port.
func waitForRead(m *machine.MockMachine, port string) bool {
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		for _, entry := range m.Journal() {
			if entry == port+" read" {
				return true
			}
		}

		time.Sleep(5 * time.Millisecond)
	}

	return false
}

func TestTouchstopdMain(t *testing.T) {
	Convey("Given a data dir and a mock machine", t, func() {
		dir, err := ioutil.TempDir("", "touchstop-main")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		var mock *machine.MockMachine
		created := make(chan *machine.MockMachine, 1)
		pressed := true

		defer func(create func(*machine.MockMachineConfig) *machine.MockMachine) {
			newMockMachine = create
		}(newMockMachine)

		newMockMachine = func(config *machine.MockMachineConfig) *machine.MockMachine {
			mock = machine.NewMockMachine(config)
			if pressed {
				So(pressOverHandler(mock, "in1"), ShouldEqual, http.StatusNoContent)
			}
			created <- mock
			return mock
		}

		dbPath := filepath.Join(dir, "touchstop.db")

		Convey("a pressed sensor ends the run and the run is recorded", func() {
			err := touchstopdMain(context.Background(), []string{"--machine", "mock", "--datadir", dir})
			So(err, ShouldBeNil)

			So(mock.Journal(), ShouldResemble, []string{
				"bind motor outA",
				"bind touch in1",
				"bind sound",
				"outA set-speed -10",
				"outA run-forever",
				"in1 read",
				"outA stop",
				"sound beep",
			})

			db, err := rundb.Open(dir)
			So(err, ShouldBeNil)
			defer db.Close()

			run, err := db.LastRun()
			So(err, ShouldBeNil)
			So(run, ShouldNotBeNil)
			So(run.Outcome, ShouldEqual, rundb.OutcomeDone)
			So(run.Polls, ShouldEqual, 1)
		})

		Convey("--norecord runs without a run database", func() {
			err := touchstopdMain(context.Background(), []string{"--machine", "mock", "--datadir", dir, "--norecord"})
			So(err, ShouldBeNil)
			So(mock.MotorOn("outA").Running(), ShouldBeFalse)

			_, err = os.Stat(dbPath)
			So(os.IsNotExist(err), ShouldBeTrue)
		})

		Convey("--api.listen serves an empty run list without a run database", func() {
			addr, err := freeAddr()
			So(err, ShouldBeNil)

			pressed = false

			type result struct {
				read   bool
				status int
				body   string
				err    error
			}

			results := make(chan result, 1)

			go func() {
				m := <-created

				res := result{read: waitForRead(m, "in1")}

				resp, err := http.Get("http://" + addr + "/api/v1/runs")
				if err == nil {
					body, _ := ioutil.ReadAll(resp.Body)
					resp.Body.Close()
					res.status = resp.StatusCode
					res.body = string(body)
				}
				res.err = err

				m.Touch("in1").Press()
				results <- res
			}()

			err = touchstopdMain(context.Background(), []string{
				"--machine", "mock", "--datadir", dir, "--norecord",
				"--touch.interval", "5ms", "--api.listen", addr,
			})
			So(err, ShouldBeNil)

			res := <-results
			So(res.read, ShouldBeTrue)
			So(res.err, ShouldBeNil)
			So(res.status, ShouldEqual, http.StatusOK)
			So(res.body, ShouldContainSubstring, `"runs":[]`)
		})

		Convey("an interrupt fails the run and records it", func() {
			pressed = false

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := touchstopdMain(ctx, []string{"--machine", "mock", "--datadir", dir})
			So(err, ShouldNotBeNil)
			So(mock.MotorOn("outA").Running(), ShouldBeFalse)

			db, err := rundb.Open(dir)
			So(err, ShouldBeNil)
			defer db.Close()

			run, err := db.LastRun()
			So(err, ShouldBeNil)
			So(run.Outcome, ShouldEqual, rundb.OutcomeInterrupted)
		})

		Convey("--help and --version stop before anything runs", func() {
			So(touchstopdMain(context.Background(), []string{"--help"}), ShouldBeNil)
			So(touchstopdMain(context.Background(), []string{"--version"}), ShouldBeNil)
			So(mock, ShouldBeNil)
		})

		Convey("an ev3 machine without sysfs fails", func() {
			err := touchstopdMain(context.Background(), []string{
				"--machine", "ev3", "--datadir", dir, "--ev3.sysfs", filepath.Join(dir, "nosys"),
			})
			So(err, ShouldNotBeNil)
			So(mock, ShouldBeNil)
		})

		Convey("an invalid interval fails before the machine is created", func() {
			err := touchstopdMain(context.Background(), []string{"--machine", "mock", "--datadir", dir, "--touch.interval", "0s"})
			So(err, ShouldNotBeNil)
			So(mock, ShouldBeNil)
		})
	})
}
