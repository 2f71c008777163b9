package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	// DefaultDirName is the config directory inside the user's home.
	DefaultDirName = ".lsh"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

var hangupSignals = map[string]syscall.Signal{
	"SIGHUP":  unix.SIGHUP,
	"SIGTERM": unix.SIGTERM,
	"SIGKILL": unix.SIGKILL,
}

type Configuration struct {
	configFs afero.Fs
	dir      string

	Prompt       string `json:"prompt" validate:"required"`
	HistoryFile  string `json:"history_file"`
	HistoryLimit int    `json:"history_limit" validate:"gte=0"`
	Color        string `json:"color" validate:"oneof=auto always never"`
	Debug        bool   `json:"debug"`
	JobControl   bool   `json:"job_control"`

	ExecFailureStatus     int `json:"exec_failure_status" validate:"gte=1,lte=255"`
	RedirectFailureStatus int `json:"redirect_failure_status" validate:"gte=1,lte=255"`

	HangupSignal string `json:"hangup_signal" validate:"oneof=SIGHUP SIGTERM SIGKILL"`
	EventLog     string `json:"event_log"`

	Aliases map[string]string `json:"aliases" validate:"dive,keys,required,excludesall=0x7C&<>;,endkeys,required"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// fsFor returns the filesystem holding name. Relative names live in the
// config directory, absolute ones anywhere on the host.
func (c *Configuration) fsFor(name string) afero.Fs {
	if filepath.IsAbs(name) {
		return afero.NewOsFs()
	}
	return c.fs()
}

// Dir is the directory the configuration was loaded from.
func (c *Configuration) Dir() string {
	return c.dir
}

// HangupSig returns the signal sent to remaining jobs on exit.
func (c *Configuration) HangupSig() syscall.Signal {
	if sig, ok := hangupSignals[c.HangupSignal]; ok {
		return sig
	}
	return unix.SIGHUP
}

// UseColor reports whether output should be colored given whether it's a
// terminal.
func (c *Configuration) UseColor(isTerminal bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return isTerminal
	}
}

// HistoryPath returns the OS path of the history file, empty if history
// shouldn't be persisted.
func (c *Configuration) HistoryPath() string {
	return c.resolve(c.HistoryFile)
}

// EventLogPath returns the OS path of the event log, empty if disabled.
func (c *Configuration) EventLogPath() string {
	return c.resolve(c.EventLog)
}

func (c *Configuration) resolve(name string) string {
	switch {
	case name == "":
		return ""
	case filepath.IsAbs(name):
		return name
	default:
		return filepath.Join(c.dir, name)
	}
}

// OpenEventLog opens the event log in an append only state, creating the
// config directory if needed. It returns nil if the event log is disabled.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	if c.EventLog == "" {
		return nil, nil
	}
	fs := c.fsFor(c.EventLog)
	if err := fs.MkdirAll(filepath.Dir(c.EventLog), 0700); err != nil {
		return nil, err
	}
	return fs.OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	if c.EventLog == "" {
		return nil, os.ErrNotExist
	}
	return c.fsFor(c.EventLog).OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
