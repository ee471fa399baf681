package machine

import (
	"encoding/binary"
	"golang.org/x/sys/unix"
	"io"
	"os"
	"time"
)

// Event type and code of the evdev sound interface, see linux/input-event-codes.h
const (
	evSnd   = 0x12
	sndTone = 0x02
)

// inputEvent mirrors struct input_event from linux/input.h
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type ev3Sound struct {
	device    string
	frequency int
	duration  time.Duration
}

func (s *ev3Sound) Beep() error {
	f, err := os.OpenFile(s.device, os.O_WRONLY, 0)
	if err != nil {
		return &CommandRejectedError{Port: "sound", Command: "beep", Err: err}
	}

	defer f.Close()

	if err := writeTone(f, s.frequency); err != nil {
		return &CommandRejectedError{Port: "sound", Command: "beep", Err: err}
	}

	time.Sleep(s.duration)

	// a zero frequency silences the beeper
	if err := writeTone(f, 0); err != nil {
		return &CommandRejectedError{Port: "sound", Command: "beep", Err: err}
	}

	return nil
}

func writeTone(w io.Writer, frequency int) error {
	ev := inputEvent{
		Time:  unix.NsecToTimeval(time.Now().UnixNano()),
		Type:  evSnd,
		Code:  sndTone,
		Value: int32(frequency),
	}

	return binary.Write(w, binary.LittleEndian, &ev)
}
