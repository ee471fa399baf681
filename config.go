package main

import (
	"github.com/go-errors/errors"
	"github.com/jessevdk/go-flags"
	"github.com/the-lightning-land/touchstop/controller"
	"github.com/the-lightning-land/touchstop/machine"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultConfigFilename = "touchstop.conf"
	defaultDataDir        = "/data"
	defaultMachine        = "ev3"
	defaultMotorPort      = "outA"
	defaultMotorSpeed     = -10
	defaultTouchPort      = "in1"
	defaultBuzzerPin      = "GPIO4"
)

type motorConfig struct {
	Port  string `long:"port" description:"Output port the motor is attached to"`
	Speed int    `long:"speed" description:"Signed target speed, negative runs in reverse"`
}

type touchConfig struct {
	Port     string        `long:"port" description:"Input port the touch sensor is attached to"`
	Interval time.Duration `long:"interval" description:"Interval between two reads of the touch sensor"`
}

type ev3Config struct {
	Sysfs string `long:"sysfs" description:"Mount point of sysfs"`
	Sound string `long:"sound" description:"Input device of the beeper"`
}

type raspberryConfig struct {
	BuzzerPin string `long:"buzzerpin" description:"GPIO pin the buzzer is connected to"`
}

type mockConfig struct {
	Listen string `long:"listen" description:"Address to serve the touch controls of the mock machine on"`
}

type apiConfig struct {
	Listen string `long:"listen" description:"Address to serve the status api on"`
}

type config struct {
	ShowVersion bool   `short:"v" long:"version" description:"Display version information and exit"`
	Debug       bool   `long:"debug" description:"Start in debug mode"`
	ConfigFile  string `long:"configfile" description:"Path to configuration file"`
	DataDir     string `long:"datadir" description:"The directory to store the run history in"`
	NoRecord    bool   `long:"norecord" description:"Do not record runs"`
	Machine     string `long:"machine" description:"The type of machine to use" choice:"ev3" choice:"raspberry" choice:"mock"`

	Motor     motorConfig     `group:"Motor" namespace:"motor"`
	Touch     touchConfig     `group:"Touch" namespace:"touch"`
	Ev3       ev3Config       `group:"EV3" namespace:"ev3"`
	Raspberry raspberryConfig `group:"Raspberry" namespace:"raspberry"`
	Mock      mockConfig      `group:"Mock" namespace:"mock"`
	Api       apiConfig       `group:"API" namespace:"api"`
}

func defaultConfig() config {
	return config{
		DataDir: defaultDataDir,
		Machine: defaultMachine,
		Motor: motorConfig{
			Port:  defaultMotorPort,
			Speed: defaultMotorSpeed,
		},
		Touch: touchConfig{
			Port:     defaultTouchPort,
			Interval: controller.DefaultPollInterval,
		},
		Ev3: ev3Config{
			Sysfs: machine.DefaultEv3SysfsPath,
			Sound: machine.DefaultEv3SoundDevice,
		},
		Raspberry: raspberryConfig{
			BuzzerPin: defaultBuzzerPin,
		},
	}
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig(args []string) (*config, error) {
	preCfg := defaultConfig()
	if _, err := flags.ParseArgs(&preCfg, args); err != nil {
		return nil, err
	}

	// Nothing more to load when only the version is requested
	if preCfg.ShowVersion {
		return &preCfg, nil
	}

	cfg := preCfg

	configFile := preCfg.ConfigFile
	if configFile == "" {
		configFile = filepath.Join(preCfg.DataDir, defaultConfigFilename)
	}

	if err := flags.IniParse(configFile, &cfg); err != nil {
		// a missing config file is fine
		if _, ok := err.(*os.PathError); !ok {
			return nil, errors.Errorf("Could not parse config file %v: %v", configFile, err)
		}
	}

	// Command line options take precedence over the config file
	if _, err := flags.ParseArgs(&cfg, args); err != nil {
		return nil, err
	}

	if cfg.Touch.Interval <= 0 {
		return nil, errors.Errorf("Touch interval must be positive, got %v", cfg.Touch.Interval)
	}

	return &cfg, nil
}
