package controller

import (
	"context"
	"github.com/go-errors/errors"
	"github.com/the-lightning-land/touchstop/machine"
	"github.com/the-lightning-land/touchstop/rundb"
	"sync"
	"time"
)

const DefaultPollInterval = 100 * time.Millisecond

// ErrInterrupted is returned by Run when its context ends before the
// touch sensor was pressed.
var ErrInterrupted error = errors.New("interrupted before the touch sensor was pressed")

// RunStore keeps the record of every run.
type RunStore interface {
	SaveRun(run *rundb.Run) error
}

type Config struct {
	Machine      machine.Machine
	MotorPort    string
	TouchPort    string
	Speed        int
	PollInterval time.Duration
	Store        RunStore
	Logger       Logger
}

// Controller spins a motor until a touch sensor is pressed, then stops
// the motor and beeps.
type Controller struct {
	machine      machine.Machine
	motorPort    string
	touchPort    string
	speed        int
	pollInterval time.Duration
	store        RunStore
	log          Logger

	// sleep blocks for one poll interval
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	phase Phase
	polls int
}

func New(config *Config) *Controller {
	c := &Controller{
		machine:      config.Machine,
		motorPort:    config.MotorPort,
		touchPort:    config.TouchPort,
		speed:        config.Speed,
		pollInterval: config.PollInterval,
		store:        config.Store,
		sleep:        sleepContext,
		phase:        PhaseIdle,
	}

	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}

	if config.Logger != nil {
		c.log = config.Logger
	} else {
		c.log = noopLogger{}
	}

	return c
}

// Phase reports how far the current run has come.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase
}

// Polls reports how often the touch sensor was read in the current run.
func (c *Controller) Polls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.polls
}

// Run binds the devices and blocks until the touch sensor is pressed.
// Any device failure ends the run and is returned as is. Cancelling ctx
// stops the motor without a beep and returns ErrInterrupted.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.polls = 0
	c.mu.Unlock()

	run := &rundb.Run{
		Started:   time.Now(),
		MotorPort: c.motorPort,
		TouchPort: c.touchPort,
		Speed:     c.speed,
	}

	err := c.run(ctx)

	c.finish(run, err)

	return err
}

func (c *Controller) run(ctx context.Context) error {
	c.setPhase(PhaseBinding)

	motor, err := c.machine.Motor(c.motorPort)
	if err != nil {
		return errors.WrapPrefix(err, "Could not bind motor", 0)
	}

	c.log.Infof("Bound motor on %v", motor.Port())

	touch, err := c.machine.TouchSensor(c.touchPort)
	if err != nil {
		return errors.WrapPrefix(err, "Could not bind touch sensor", 0)
	}

	c.log.Infof("Bound touch sensor on %v", touch.Port())

	sound, err := c.machine.Sound()
	if err != nil {
		return errors.WrapPrefix(err, "Could not bind sound", 0)
	}

	c.setPhase(PhaseRunning)

	if err := motor.SetSpeed(c.speed); err != nil {
		return errors.WrapPrefix(err, "Could not set motor speed", 0)
	}

	if err := motor.RunForever(); err != nil {
		return errors.WrapPrefix(err, "Could not run motor", 0)
	}

	c.log.Infof("Running motor at speed %v until touched", c.speed)

	c.setPhase(PhaseWaiting)

	err = c.waitForTouch(ctx, touch)
	if err == ErrInterrupted {
		c.log.Infof("Interrupted while waiting for touch, stopping motor")

		if err := motor.Stop(); err != nil {
			c.log.Errorf("Could not stop motor: %v", err)
		}

		return ErrInterrupted
	} else if err != nil {
		return errors.WrapPrefix(err, "Could not read touch sensor", 0)
	}

	c.log.Infof("Touch sensor pressed after %v polls", c.Polls())

	c.setPhase(PhaseStopping)

	if err := motor.Stop(); err != nil {
		return errors.WrapPrefix(err, "Could not stop motor", 0)
	}

	if err := sound.Beep(); err != nil {
		return errors.WrapPrefix(err, "Could not beep", 0)
	}

	c.setPhase(PhaseDone)

	return nil
}

// waitForTouch polls the sensor until it reads pressed. There is no
// timeout, only ctx ends the wait early.
func (c *Controller) waitForTouch(ctx context.Context, touch machine.TouchSensor) error {
	for {
		pressed, err := touch.IsPressed()
		if err != nil {
			return err
		}

		c.mu.Lock()
		c.polls++
		c.mu.Unlock()

		if pressed {
			return nil
		}

		c.log.Debugf("Touch sensor on %v not pressed yet", touch.Port())

		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return ErrInterrupted
		}
	}
}

func (c *Controller) finish(run *rundb.Run, err error) {
	run.Finished = time.Now()
	run.Polls = c.Polls()

	switch {
	case err == nil:
		run.Outcome = rundb.OutcomeDone
	case err == ErrInterrupted:
		run.Outcome = rundb.OutcomeInterrupted
		c.setPhase(PhaseInterrupted)
	default:
		run.Outcome = rundb.OutcomeFailed
		run.Error = err.Error()
		c.setPhase(PhaseFailed)
	}

	if c.store == nil {
		return
	}

	if err := c.store.SaveRun(run); err != nil {
		c.log.Errorf("Could not save run: %v", err)
	}
}

func (c *Controller) setPhase(phase Phase) {
	c.mu.Lock()
	c.phase = phase
	c.mu.Unlock()

	c.log.Debugf("Entering phase %v", phase)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
