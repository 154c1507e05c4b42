package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the handvol daemon.
//
// Defaults live in DefaultConfig, the file is layered on top, then flag
// overrides, then Validate. Everything past Validate may assume a well-formed
// config.
type Config struct {
	Control        ControlConfig        `yaml:"control"`
	Source         SourceConfig         `yaml:"source"`
	ActivationKeys ActivationKeysConfig `yaml:"activation_keys"`
	Sink           SinkConfig           `yaml:"sink"`
	IPC            IPCConfig            `yaml:"ipc"`
	HTTP           HTTPConfig           `yaml:"http"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// Mode selects the controller that turns samples into volume.
type Mode string

const (
	ModeStep       Mode = "step"
	ModeContinuous Mode = "continuous"
)

// ControlConfig configures the control core. It is everything NewSession needs.
type ControlConfig struct {
	Mode Mode `yaml:"mode"`

	// Step mode
	TrajectorySize int     `yaml:"trajectory_size"`
	StepSize       int     `yaml:"step_size"`
	ThresholdLow   float64 `yaml:"threshold_low"`
	ThresholdHigh  float64 `yaml:"threshold_high"`

	// Volume bounds shared by both modes
	VolMin int `yaml:"vol_min"`
	VolMax int `yaml:"vol_max"`

	// InitialVolume defaults to the midpoint of [VolMin, VolMax].
	InitialVolume *int `yaml:"initial_volume,omitempty"`
	// SyncOnStart pushes the initial volume to the sink once at startup.
	SyncOnStart bool `yaml:"sync_on_start"`

	// Landmark indices of the two tracked fingertips.
	JointA int `yaml:"joint_a"`
	JointB int `yaml:"joint_b"`

	Continuous ContinuousConfig `yaml:"continuous"`
}

type ContinuousConfig struct {
	LenMin     float64 `yaml:"len_min"`
	LenMax     float64 `yaml:"len_max"`
	GateConfig `yaml:",inline"`
}

// SourceKind selects where frames come from.
type SourceKind string

const (
	SourceRecognizer SourceKind = "recognizer"
	SourceStdin      SourceKind = "stdin"
	SourceNone       SourceKind = "none"
)

type SourceConfig struct {
	Kind SourceKind `yaml:"kind"`
	// Command is the recognizer argv; it must print one JSON frame per line.
	Command []string `yaml:"command,omitempty"`
	// QueueSize is the buffered event channel between sources and the daemon.
	QueueSize int `yaml:"queue_size"`
}

// ActivationKeysConfig maps Linux input keys onto activation gestures.
// Disabled when Devices is empty.
type ActivationKeysConfig struct {
	Devices       []string `yaml:"devices,omitempty"`
	ActivateKey   int      `yaml:"activate_key"`
	DeactivateKey int      `yaml:"deactivate_key"`
}

// SinkKind selects the volume actuator.
type SinkKind string

const (
	SinkCamillaDSP SinkKind = "camilladsp"
	SinkCommand    SinkKind = "command"
	SinkMIDI       SinkKind = "midi"
	SinkLog        SinkKind = "log"
)

type SinkConfig struct {
	Kind       SinkKind         `yaml:"kind"`
	CamillaDSP CamillaDSPConfig `yaml:"camilladsp"`
	Command    CommandConfig    `yaml:"command"`
	MIDI       MIDIConfig       `yaml:"midi"`
}

type CamillaDSPConfig struct {
	WsURL     string  `yaml:"ws_url"`
	TimeoutMS int     `yaml:"timeout_ms"`
	MinDB     float64 `yaml:"min_db"`
	MaxDB     float64 `yaml:"max_db"`
}

type CommandConfig struct {
	// Argv templates; {{.Volume}} and {{.Fraction}} are available, plus sprig functions.
	Argv      []string `yaml:"argv"`
	TimeoutMS int      `yaml:"timeout_ms"`
}

type MIDIConfig struct {
	// Port is matched as a case-insensitive prefix of the output port name.
	Port       string `yaml:"port"`
	Channel    int    `yaml:"channel"`
	Controller int    `yaml:"controller"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"` // empty disables IPC
}

type HTTPConfig struct {
	Port int `yaml:"port"` // 0 disables the state websocket and health endpoint
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// defaultCommandArgv is the macOS output volume command.
var defaultCommandArgv = []string{"osascript", "-e", "set volume output volume {{.Volume}}"}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Control: ControlConfig{
			Mode:           ModeStep,
			TrajectorySize: defaultTrajectorySize,
			StepSize:       defaultStepSize,
			ThresholdLow:   defaultThresholdLow,
			ThresholdHigh:  defaultThresholdHigh,
			VolMin:         volumeFloor,
			VolMax:         volumeCeiling,
			SyncOnStart:    true,
			JointA:         defaultJointA,
			JointB:         defaultJointB,
			Continuous: ContinuousConfig{
				LenMin: defaultLenMin,
				LenMax: defaultLenMax,
				GateConfig: GateConfig{
					Finger: defaultGateFinger,
					Above:  defaultGateAbove,
				},
			},
		},
		Source: SourceConfig{
			Kind:      SourceStdin,
			QueueSize: defaultEventQueue,
		},
		ActivationKeys: ActivationKeysConfig{
			ActivateKey:   KEY_PLAYCD,
			DeactivateKey: KEY_PAUSECD,
		},
		Sink: SinkConfig{
			Kind: SinkLog,
			CamillaDSP: CamillaDSPConfig{
				WsURL:     "ws://127.0.0.1:1234",
				TimeoutMS: defaultReadTimeoutMS,
				MinDB:     defaultCamillaMinDB,
				MaxDB:     defaultCamillaMaxDB,
			},
			Command: CommandConfig{
				Argv:      append([]string(nil), defaultCommandArgv...),
				TimeoutMS: 2000,
			},
			MIDI: MIDIConfig{
				Channel:    0,
				Controller: defaultMIDIController,
			},
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		HTTP: HTTPConfig{
			Port: defaultHTTPPort,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(LogFormatText),
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
// Unknown fields and trailing documents are rejected.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	var rest yaml.Node
	if err := dec.Decode(&rest); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries command-line overrides. A nil pointer means "not set";
// a non-nil pointer is applied even when it holds a zero value.
type FlagOverrides struct {
	Mode           *string
	TrajectorySize *int
	StepSize       *int
	ThresholdLow   *float64
	ThresholdHigh  *float64
	InitialVolume  *int

	SourceKind    *string
	SourceCommand *string // split on whitespace

	SinkKind     *string
	CamillaWsURL *string
	MIDIPort     *string

	IPCSocketPath *string
	HTTPPort      *int

	LogLevel  *string
	LogFormat *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}

	if o.Mode != nil {
		cfg.Control.Mode = Mode(*o.Mode)
	}
	if o.TrajectorySize != nil {
		cfg.Control.TrajectorySize = *o.TrajectorySize
	}
	if o.StepSize != nil {
		cfg.Control.StepSize = *o.StepSize
	}
	if o.ThresholdLow != nil {
		cfg.Control.ThresholdLow = *o.ThresholdLow
	}
	if o.ThresholdHigh != nil {
		cfg.Control.ThresholdHigh = *o.ThresholdHigh
	}
	if o.InitialVolume != nil {
		v := *o.InitialVolume
		cfg.Control.InitialVolume = &v
	}

	if o.SourceKind != nil {
		cfg.Source.Kind = SourceKind(*o.SourceKind)
	}
	if o.SourceCommand != nil {
		cfg.Source.Command = strings.Fields(*o.SourceCommand)
	}

	if o.SinkKind != nil {
		cfg.Sink.Kind = SinkKind(*o.SinkKind)
	}
	if o.CamillaWsURL != nil {
		cfg.Sink.CamillaDSP.WsURL = *o.CamillaWsURL
	}
	if o.MIDIPort != nil {
		cfg.Sink.MIDI.Port = *o.MIDIPort
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
}

// Validate checks the whole config. It returns a *ConfigurationError naming
// the first offending field.
func (c *Config) Validate() error {
	if err := c.Control.Validate(); err != nil {
		return err
	}

	switch c.Source.Kind {
	case SourceRecognizer:
		if len(c.Source.Command) == 0 {
			return configErrorf("source.command", "must not be empty for the recognizer source")
		}
	case SourceStdin, SourceNone:
	default:
		return configErrorf("source.kind", "must be %q, %q or %q (got %q)", SourceRecognizer, SourceStdin, SourceNone, c.Source.Kind)
	}
	if c.Source.QueueSize <= 0 {
		return configErrorf("source.queue_size", "must be > 0")
	}

	for i, dev := range c.ActivationKeys.Devices {
		if dev == "" {
			return configErrorf(fmt.Sprintf("activation_keys.devices[%d]", i), "is empty")
		}
	}
	if len(c.ActivationKeys.Devices) > 0 {
		if k := c.ActivationKeys.ActivateKey; k < 0 || k > maxKeyCode {
			return configErrorf("activation_keys.activate_key", "must be between 0 and %d (got %d)", maxKeyCode, k)
		}
		if k := c.ActivationKeys.DeactivateKey; k < 0 || k > maxKeyCode {
			return configErrorf("activation_keys.deactivate_key", "must be between 0 and %d (got %d)", maxKeyCode, k)
		}
	}
	if len(c.ActivationKeys.Devices) > 0 && c.ActivationKeys.ActivateKey == c.ActivationKeys.DeactivateKey {
		return configErrorf("activation_keys.deactivate_key", "must differ from activate_key")
	}

	switch c.Sink.Kind {
	case SinkCamillaDSP:
		if c.Sink.CamillaDSP.WsURL == "" {
			return configErrorf("sink.camilladsp.ws_url", "must not be empty")
		}
		if c.Sink.CamillaDSP.TimeoutMS <= 0 {
			return configErrorf("sink.camilladsp.timeout_ms", "must be > 0")
		}
		if c.Sink.CamillaDSP.MinDB >= c.Sink.CamillaDSP.MaxDB {
			return configErrorf("sink.camilladsp.min_db", "must be < sink.camilladsp.max_db")
		}
	case SinkCommand:
		if len(c.Sink.Command.Argv) == 0 {
			return configErrorf("sink.command.argv", "must not be empty")
		}
		if c.Sink.Command.TimeoutMS <= 0 {
			return configErrorf("sink.command.timeout_ms", "must be > 0")
		}
	case SinkMIDI:
		if c.Sink.MIDI.Channel < 0 || c.Sink.MIDI.Channel > 15 {
			return configErrorf("sink.midi.channel", "must be between 0 and 15")
		}
		if c.Sink.MIDI.Controller < 0 || c.Sink.MIDI.Controller > 127 {
			return configErrorf("sink.midi.controller", "must be between 0 and 127")
		}
	case SinkLog:
	default:
		return configErrorf("sink.kind", "must be one of camilladsp, command, midi, log (got %q)", c.Sink.Kind)
	}

	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return configErrorf("http.port", "must be between 0 and 65535")
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return configErrorf("logging.level", "%v", err)
	}
	if _, err := parseLogFormat(c.Logging.Format); err != nil {
		return configErrorf("logging.format", "%v", err)
	}

	return nil
}

// Validate checks the control core settings.
func (c ControlConfig) Validate() error {
	switch c.Mode {
	case ModeStep, ModeContinuous:
	default:
		return configErrorf("control.mode", "must be %q or %q (got %q)", ModeStep, ModeContinuous, c.Mode)
	}

	if c.TrajectorySize < 2 {
		return configErrorf("control.trajectory_size", "must be >= 2 (got %d)", c.TrajectorySize)
	}
	if c.StepSize <= 0 {
		return configErrorf("control.step_size", "must be > 0 (got %d)", c.StepSize)
	}
	if !(c.ThresholdLow < c.ThresholdHigh) {
		return configErrorf("control.threshold_low", "must be < control.threshold_high (got %v >= %v)", c.ThresholdLow, c.ThresholdHigh)
	}

	if c.VolMin < volumeFloor || c.VolMax > volumeCeiling {
		return configErrorf("control.vol_min", "volume bounds must lie within [%d, %d]", volumeFloor, volumeCeiling)
	}
	if c.VolMin >= c.VolMax {
		return configErrorf("control.vol_min", "must be < control.vol_max")
	}
	if c.InitialVolume != nil && (*c.InitialVolume < c.VolMin || *c.InitialVolume > c.VolMax) {
		return configErrorf("control.initial_volume", "must lie within [%d, %d] (got %d)", c.VolMin, c.VolMax, *c.InitialVolume)
	}

	if c.JointA < 0 || c.JointB < 0 {
		return configErrorf("control.joint_a", "landmark indices must be >= 0")
	}
	if c.JointA == c.JointB {
		return configErrorf("control.joint_b", "must differ from control.joint_a")
	}

	if !(c.Continuous.LenMin < c.Continuous.LenMax) {
		return configErrorf("control.continuous.len_min", "must be < control.continuous.len_max")
	}
	if c.Continuous.Finger < -1 {
		return configErrorf("control.continuous.gate_finger", "must be >= -1")
	}

	return nil
}

// initialVolume resolves the configured starting volume.
func (c ControlConfig) initialVolume() int {
	if c.InitialVolume != nil {
		return *c.InitialVolume
	}
	return c.VolMin + (c.VolMax-c.VolMin)/2
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
