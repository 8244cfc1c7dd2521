// Package scenario composes a hybrid network scenario and runs it on a
// simulation engine.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/fatih/structs"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/hybridnet/addressing"
	"github.com/sarchlab/hybridnet/mobility"
	"github.com/sarchlab/hybridnet/topology"
	"github.com/sarchlab/hybridnet/traffic"
)

// EnvPrefix prefixes the environment variables that override options.
const EnvPrefix = "HYBRIDNET_"

// ConfigError reports an option that cannot be used to build a scenario.
type ConfigError struct {
	Option string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Option, e.Value, e.Reason)
}

// Options are the raw knobs of a scenario, as read from flags, environment
// variables and files. Names follow the command line flags.
type Options struct {
	WiredNodes int    `yaml:"nLan" validate:"gte=2"`
	NWifi      int    `yaml:"nWifi" validate:"gte=0"`
	Protocol   int    `yaml:"protocol" validate:"gte=0,lte=2"`
	Mobility   int    `yaml:"mobility" validate:"gte=0,lte=1"`
	OutputFile string `yaml:"outputFile" validate:"required"`
	Seed       uint64 `yaml:"seed"`

	WiredDataRate string  `yaml:"wiredDataRate" validate:"required"`
	WiredDelay    float64 `yaml:"wiredDelay" validate:"gte=0"`
	SSID          string  `yaml:"ssid" validate:"required,max=32"`
	WiredBlock    string  `yaml:"wiredBlock" validate:"cidrv4"`
	WirelessBlock string  `yaml:"wirelessBlock" validate:"cidrv4"`

	SourceDataRate string  `yaml:"dataRate" validate:"required"`
	PacketSize     int     `yaml:"packetSize" validate:"gt=0,lte=65507"`
	SegmentSize    int     `yaml:"segmentSize" validate:"gt=0,lte=65495"`
	MaxBytes       uint64  `yaml:"maxBytes"`
	UDPPort        uint16  `yaml:"udpPort" validate:"gt=0"`
	TCPPort        uint16  `yaml:"tcpPort" validate:"gt=0,nefield=UDPPort"`
	SinglePort     uint16  `yaml:"port" validate:"gt=0"`
	SinkStart      float64 `yaml:"sinkStart" validate:"gte=0"`
	SinkStop       float64 `yaml:"sinkStop" validate:"gtfield=SinkStart"`
	SourceStart    float64 `yaml:"sourceStart" validate:"gtefield=SinkStart"`
	SourceStop     float64 `yaml:"sourceStop" validate:"gtfield=SourceStart"`
}

// DefaultOptions returns the options of the reference scenario.
func DefaultOptions() Options {
	p := traffic.DefaultProfile()

	return Options{
		WiredNodes:     topology.DefaultWiredNodes,
		NWifi:          topology.DefaultWirelessNodes,
		Protocol:       int(traffic.ProtocolUDP),
		Mobility:       int(mobility.ModeStatic),
		OutputFile:     "flow-monitor.xml",
		Seed:           1,
		WiredDataRate:  topology.DefaultWiredDataRate.String(),
		WiredDelay:     float64(topology.DefaultWiredDelay),
		SSID:           topology.DefaultSSID,
		WiredBlock:     addressing.DefaultWiredBlock.String(),
		WirelessBlock:  addressing.DefaultWirelessBlock.String(),
		SourceDataRate: p.DataRate.String(),
		PacketSize:     p.PacketSize,
		SegmentSize:    p.SegmentSize,
		MaxBytes:       p.MaxBytes,
		UDPPort:        p.UDPPort,
		TCPPort:        p.TCPPort,
		SinglePort:     p.SinglePort,
		SinkStart:      float64(p.SinkWindow.Start),
		SinkStop:       float64(p.SinkWindow.Stop),
		SourceStart:    float64(p.SourceWindow.Start),
		SourceStop:     float64(p.SourceWindow.Stop),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})

	return v
}

// Validate checks every option against its constraints. The first failing
// option is reported as a *ConfigError.
func (o Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]

	return &ConfigError{
		Option: fe.Field(),
		Value:  fe.Value(),
		Reason: describeTag(fe),
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must be set"
	case "gte":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "cidrv4":
		return "must be an IPv4 block such as 10.1.1.0/24"
	case "nefield":
		return "must differ from " + fe.Param()
	case "gtfield", "gtefield":
		return "must come after " + fe.Param()
	default:
		return "fails " + fe.Tag()
	}
}

// LoadFile reads a YAML scenario file on top of the options. Keys absent from
// the file keep their current value. Unknown keys are rejected.
func (o Options) LoadFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("reading scenario file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&o); err != nil {
		return o, fmt.Errorf("parsing scenario file %s: %w", path, err)
	}

	return o, nil
}

// EnvName returns the environment variable that overrides an option.
func EnvName(option string) string {
	return EnvPrefix + strings.ToUpper(option)
}

// FromEnv overrides the options whose HYBRIDNET_<OPTION> variable is set.
func (o Options) FromEnv(lookup func(string) (string, bool)) (Options, error) {
	s := structs.New(&o)

	for _, f := range s.Fields() {
		name, _, _ := strings.Cut(f.Tag("yaml"), ",")

		raw, ok := lookup(EnvName(name))
		if !ok {
			continue
		}

		v, err := parseKind(f.Kind(), strings.TrimSpace(raw))
		if err != nil {
			return o, &ConfigError{Option: name, Value: raw, Reason: err.Error()}
		}

		if err := f.Set(v); err != nil {
			return o, &ConfigError{Option: name, Value: raw, Reason: err.Error()}
		}
	}

	return o, nil
}

func parseKind(k reflect.Kind, raw string) (any, error) {
	switch k {
	case reflect.String:
		return raw, nil
	case reflect.Int:
		v, err := strconv.Atoi(raw)
		return v, err
	case reflect.Uint16:
		v, err := strconv.ParseUint(raw, 10, 16)
		return uint16(v), err
	case reflect.Uint64:
		return strconv.ParseUint(raw, 10, 64)
	case reflect.Float64:
		return strconv.ParseFloat(raw, 64)
	default:
		return nil, fmt.Errorf("unsupported kind %s", k)
	}
}

// Map returns the options keyed by option name.
func (o Options) Map() map[string]any {
	out := make(map[string]any)

	for _, f := range structs.New(o).Fields() {
		name, _, _ := strings.Cut(f.Tag("yaml"), ",")
		out[name] = f.Value()
	}

	return out
}
