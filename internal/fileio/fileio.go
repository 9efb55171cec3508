// Package fileio wraps the host filesystem and device surface behind the
// small request/response contracts the audio core consumes.
package fileio

import (
	"errors"
	"fmt"
	"os"
)

var ErrNotFound = errors.New("file not found")

// FS is the file access contract used by the player, mixer and lyrics
// loaders. The OS implementation is the default; tests substitute fakes.
type FS interface {
	Exists(path string) bool
	ReadBinary(path string) ([]byte, error)
	ReadText(path string) (string, error)
	WriteText(path, content string) error
}

type OSFS struct{}

func (OSFS) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (OSFS) ReadBinary(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return b, nil
}

func (o OSFS) ReadText(path string) (string, error) {
	b, err := o.ReadBinary(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (OSFS) WriteText(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// PickerFilter narrows a file-picker request to the given extensions.
type PickerFilter struct {
	Label      string
	Extensions []string
}

// ErrPickCancelled is returned when the user dismisses a picker dialog.
var ErrPickCancelled = errors.New("file selection cancelled")

// Picker is the file selection contract. The TUI implements it with a path
// prompt; a desktop shell would implement it with a native dialog.
type Picker interface {
	PickOne(filter PickerFilter) (string, error)
	PickMany(filter PickerFilter) ([]string, error)
}

// AudioInputDevice identifies one capture device.
type AudioInputDevice struct {
	ID    string
	Label string
}

// DeviceLister enumerates audio input devices.
type DeviceLister interface {
	ListAudioInputDevices() ([]AudioInputDevice, error)
}

// StaticDeviceLister serves a fixed device list. The startup wiring seeds it
// with the platform default plus any ids named in the environment.
type StaticDeviceLister struct {
	Devices []AudioInputDevice
}

func (l StaticDeviceLister) ListAudioInputDevices() ([]AudioInputDevice, error) {
	if len(l.Devices) == 0 {
		return []AudioInputDevice{{ID: "default", Label: "System default"}}, nil
	}
	return l.Devices, nil
}
