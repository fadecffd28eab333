package natureremo

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

const (
	APPLIANCE_TYPE_SMART_METER = "EL_SMART_METER"
	APPLIANCE_TYPE_AC          = "AC"
	APPLIANCE_TYPE_LIGHT       = "LIGHT"
	APPLIANCE_TYPE_TV          = "TV"
	APPLIANCE_TYPE_IR          = "IR"
)

// ECHONET Lite property codes reported by the smart meter.
const (
	EPC_COEFFICIENT                 = 0xD3 // 211
	EPC_EFFECTIVE_DIGITS            = 0xD7 // 215
	EPC_NORMAL_CUMULATIVE_ENERGY    = 0xE0 // 224
	EPC_CUMULATIVE_ENERGY_UNIT      = 0xE1 // 225
	EPC_REVERSE_CUMULATIVE_ENERGY   = 0xE3 // 227
	EPC_MEASURED_INSTANTANEOUS_WATT = 0xE7 // 231
)

type SensorKind string

const (
	SENSOR_KIND_TEMPERATURE SensorKind = "te"
	SENSOR_KIND_HUMIDITY    SensorKind = "hu"
	SENSOR_KIND_ILLUMINANCE SensorKind = "il"
	SENSOR_KIND_MOTION      SensorKind = "mo"
)

type SensorEvent struct {
	Value     float64   `json:"val"`
	CreatedAt time.Time `json:"created_at"`
}

type Device struct {
	Id                string                     `json:"id"`
	Name              string                     `json:"name"`
	SerialNumber      string                     `json:"serial_number"`
	FirmwareVersion   string                     `json:"firmware_version"`
	MacAddress        string                     `json:"mac_address"`
	TemperatureOffset float64                    `json:"temperature_offset"`
	HumidityOffset    float64                    `json:"humidity_offset"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
	NewestEvents      map[SensorKind]SensorEvent `json:"newest_events,omitempty"`
}

func (d Device) NewestEvent(kind SensorKind) (SensorEvent, bool) {
	ev, ok := d.NewestEvents[kind]
	return ev, ok
}

type Appliance struct {
	Id         string          `json:"id"`
	Nickname   string          `json:"nickname"`
	Type       string          `json:"type"`
	Image      string          `json:"image,omitempty"`
	Device     Device          `json:"device"`
	Model      *ApplianceModel `json:"model,omitempty"`
	SmartMeter *SmartMeter     `json:"smart_meter,omitempty"`
	Settings   *AirconSettings `json:"settings,omitempty"`
	Light      *Light          `json:"light,omitempty"`
}

type ApplianceModel struct {
	Id           string `json:"id"`
	Manufacturer string `json:"manufacturer"`
	Name         string `json:"name"`
	RemoteName   string `json:"remote_name"`
}

type AirconSettings struct {
	Temperature     string    `json:"temp"`
	TemperatureUnit string    `json:"temp_unit"`
	Mode            string    `json:"mode"`
	Volume          string    `json:"vol"`
	Direction       string    `json:"dir"`
	Button          string    `json:"button"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PowerOn reports whether the last button sent to the air conditioner left it running.
func (s AirconSettings) PowerOn() bool {
	return s.Button != AIRCON_BUTTON_POWER_OFF
}

type Light struct {
	State LightState `json:"state"`
}

type LightState struct {
	Brightness string `json:"brightness"`
	Power      string `json:"power"`
	LastButton string `json:"last_button"`
}

type SmartMeter struct {
	EchonetProperties []EchonetProperty `json:"echonetlite_properties"`
}

// Property returns the first property with the given code.
func (m *SmartMeter) Property(epc int) (EchonetProperty, bool) {
	if m == nil {
		return EchonetProperty{}, false
	}
	for _, p := range m.EchonetProperties {
		if p.Epc == epc {
			return p, true
		}
	}
	return EchonetProperty{}, false
}

type EchonetProperty struct {
	Name      string        `json:"name"`
	Epc       int           `json:"epc"`
	Value     PropertyValue `json:"val"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PropertyValue holds a property value as sent by the cloud, which is a numeric
// string on the real API and a plain number on some fixtures.
type PropertyValue string

func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = PropertyValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = PropertyValue(n.String())
	return nil
}

func (v PropertyValue) Float64() (float64, error) {
	return strconv.ParseFloat(string(v), 64)
}

// Snapshot is the full view of appliances and devices from one refresh.
// It is never modified after construction.
type Snapshot struct {
	Appliances map[string]Appliance `json:"appliances"`
	Devices    map[string]Device    `json:"devices"`
	FetchedAt  time.Time            `json:"fetched_at"`
}

func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Appliances: map[string]Appliance{},
		Devices:    map[string]Device{},
	}
}

func (s *Snapshot) Appliance(id string) (Appliance, bool) {
	if s == nil {
		return Appliance{}, false
	}
	a, ok := s.Appliances[id]
	return a, ok
}

func (s *Snapshot) Device(id string) (Device, bool) {
	if s == nil {
		return Device{}, false
	}
	d, ok := s.Devices[id]
	return d, ok
}
