package main

import (
	"context"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/the-lightning-land/touchstop/api"
	"github.com/the-lightning-land/touchstop/controller"
	"github.com/the-lightning-land/touchstop/machine"
	"github.com/the-lightning-land/touchstop/rundb"
	"net"
	"os"
	"os/signal"
	"syscall"
)

var (
	// commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// newMockMachine creates the machine for --machine=mock
var newMockMachine = machine.NewMockMachine

// touchstopdMain is the true entry point for touchstopd. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
// Cancelling ctx interrupts the controller.
func touchstopdMain(ctx context.Context, args []string) error {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	// Load CLI configuration and defaults
	cfg, err := loadConfig(args)
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	log.Debug("Loaded config.")

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	// touchstop.db keeps the history of all runs
	var runDB *rundb.DB

	if !cfg.NoRecord {
		runDB, err = rundb.Open(cfg.DataDir)
		if err != nil {
			return errors.Wrap(err, "Could not open touchstop.db")
		}

		log.Infof("Opened %v", runDB.Path())

		defer func() {
			err := runDB.Close()
			if err != nil {
				log.Errorf("Could not close touchstop.db: %v", err)
			} else {
				log.Info("Closed touchstop.db.")
			}
		}()
	}

	// The hardware the devices are attached to
	var m machine.Machine

	switch cfg.Machine {
	case "ev3":
		m = machine.NewEv3Machine(&machine.Ev3MachineConfig{
			SysfsPath:   cfg.Ev3.Sysfs,
			SoundDevice: cfg.Ev3.Sound,
		})

		log.Infof("Created EV3 machine on sysfs %v.", cfg.Ev3.Sysfs)
	case "raspberry":
		m = machine.NewRaspberryMachine(&machine.RaspberryMachineConfig{
			BuzzerPin: cfg.Raspberry.BuzzerPin,
		})

		log.Infof("Created Raspberry Pi machine with buzzer pin %v.", cfg.Raspberry.BuzzerPin)
	case "mock":
		m = newMockMachine(&machine.MockMachineConfig{
			Listen: cfg.Mock.Listen,
			Logger: log.WithField("system", "mock"),
		})

		log.Info("Created a mock machine.")
	default:
		return errors.Errorf("Unknown machine type %v", cfg.Machine)
	}

	if err := m.Start(); err != nil {
		return errors.Wrap(err, "Could not start machine")
	}

	defer func() {
		err := m.Stop()
		if err != nil {
			log.Errorf("Could not properly stop machine: %v", err)
		} else {
			log.Infof("Stopped machine.")
		}
	}()

	controllerConfig := &controller.Config{
		Machine:      m,
		MotorPort:    cfg.Motor.Port,
		TouchPort:    cfg.Touch.Port,
		Speed:        cfg.Motor.Speed,
		PollInterval: cfg.Touch.Interval,
		Logger:       log.WithField("system", "controller"),
	}

	if runDB != nil {
		controllerConfig.Store = runDB
	}

	ctrl := controller.New(controllerConfig)

	log.Infof("Created controller.")

	if cfg.Api.Listen != "" {
		apiCfg := &api.Config{
			Controller: ctrl,
			Version:    Version,
			Log:        log.WithField("system", "api"),
		}

		if runDB != nil {
			apiCfg.Runs = runDB
		}

		lis, err := net.Listen("tcp", cfg.Api.Listen)
		if err != nil {
			return errors.Wrapf(err, "Could not listen on %v", cfg.Api.Listen)
		}

		defer lis.Close()

		go func() {
			err := api.New(apiCfg).Serve(lis)
			if err != nil {
				log.Debugf("Stopped serving api: %v", err)
			}
		}()

		log.Infof("Serving api on %v", lis.Addr())
	}

	// blocks until the touch sensor is pressed
	err = ctrl.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "Failed running controller")
	}

	log.Info("Stopped motor and beeped.")

	// finish with no error
	return nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	// Handle interrupt signals correctly
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		sig := <-signals
		log.Info(sig)
		log.Info("Received an interrupt, stopping controller...")
		cancel()
	}()

	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	err := touchstopdMain(ctx, os.Args[1:])
	cancel()

	if err != nil {
		log.WithError(err).Println("Failed running touchstopd.")
		os.Exit(1)
	}
}
