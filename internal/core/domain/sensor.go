package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE       = "bridge"
	SENSOR_ID_NOTICE             = "config_notice"
	BUTTON_ID_NOTICE_DISMISS     = "config_notice_dismiss"
	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_TEMPERATURE     = "temperature"
	DEVICE_CLASS_HUMIDITY        = "humidity"
	DEVICE_CLASS_ILLUMINANCE     = "illuminance"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	ENTITY_CLASS_CONFIG          = "config"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
	COMPONENT_SWITCH             = "switch"
	COMPONENT_BUTTON             = "button"
	REMO_MANUFACTURER            = "Nature Remo"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("remo2mqtt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "remo2mqtt",
		Model:        "Nature Remo cloud bridge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Remo2MQTT %s", md5HashShort(baseTopic)),
	}
}

// RemoHubDevice describes the physical Remo unit an entity belongs to.
func RemoHubDevice(dev RemoDevice, viaDevice string) Device {
	return Device{
		Id:           fmt.Sprintf("remo_%s", TopicId(dev.Id)),
		Name:         dev.Name,
		Manufacturer: REMO_MANUFACTURER,
		Model:        dev.SerialNumber,
		Version:      dev.FirmwareVersion,
		ViaDevice:    viaDevice,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:         bridgeDevice,
			Id:             SENSOR_ID_BRIDGE_STATE,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Connection state",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       UniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
		},
	}
}

func NoticeSensor(bridgeDevice Device) GenericSensor {
	return GenericSensor{
		Device:         IdDevice(bridgeDevice),
		Id:             SENSOR_ID_NOTICE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Configuration notice",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:information-outline",
		UniqueId:       UniqueId(bridgeDevice.Id, SENSOR_ID_NOTICE),
	}
}

func NoticeDismissButton(bridgeDevice Device) GenericButton {
	return GenericButton{
		Device:         IdDevice(bridgeDevice),
		Id:             BUTTON_ID_NOTICE_DISMISS,
		Name:           "Dismiss configuration notice",
		EntityCategory: ENTITY_CLASS_CONFIG,
		Icon:           "mdi:bell-off",
		UniqueId:       UniqueId(bridgeDevice.Id, BUTTON_ID_NOTICE_DISMISS),
	}
}

// TopicId turns a cloud id into something usable as an MQTT topic level.
func TopicId(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "-", "_"))
}

func UniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}

func OptionalBool(value bool) *bool {
	return &value
}
