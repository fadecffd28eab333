package mqtt

import (
	"testing"

	"github.com/berfenger/remo2mqtt/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *MQTTClient {
	cfg := &config.Config{MQTT: config.MQTTConfig{
		Host:             "localhost",
		Port:             1883,
		BaseTopic:        "remo",
		HADiscoveryTopic: "ha",
	}}
	return CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)
}

func TestSwitchCommandParse(t *testing.T) {
	assert := assert.New(t)

	r := switchCommandExtractor("loremTopic")
	matches := r.FindAllStringSubmatch("loremTopic/switch/my_device/command", 1)

	assert.Equal("my_device", matches[0][1], "device extract")
}

func TestSwitchCommandParseFail(t *testing.T) {
	assert := assert.New(t)

	r := switchCommandExtractor("loremTopic")

	assert.Empty(r.FindAllStringSubmatch("loremTopic/switch/my_device/state", 1), "no matches")
	assert.Empty(r.FindAllStringSubmatch("other/loremTopic/switch/my_device/command", 1), "anchored")
}

func TestButtonPressParse(t *testing.T) {
	assert := assert.New(t)

	r := buttonPressExtractor("loremTopic")
	matches := r.FindAllStringSubmatch("loremTopic/button/config_notice_dismiss/press", 1)
	assert.Equal("config_notice_dismiss", matches[0][1])

	assert.Empty(r.FindAllStringSubmatch("loremTopic/switch/config_notice_dismiss/command", 1))
}

func TestParseCommand(t *testing.T) {
	client := testClient()

	cmd, err := client.parseCommand("remo/switch/ac_1/command", MQTT_PAYLOAD_ON)
	require.NoError(t, err)
	assert.Equal(t, ParsedMQTTCommand{DeviceId: "ac_1", Command: COMMAND_SWITCH, Payload: "on"}, *cmd)

	cmd, err = client.parseCommand("remo/button/config_notice_dismiss/press", MQTT_PAYLOAD_PRESS)
	require.NoError(t, err)
	assert.Equal(t, COMMAND_BUTTON, cmd.Command)

	_, err = client.parseCommand("remo/sensor/hub_te/state", "21.5")
	assert.ErrorIs(t, err, ErrNotACommand)
}

func TestTopics(t *testing.T) {
	client := testClient()

	assert.Equal(t, "remo/bridge/state", client.BridgeStateTopic())
	assert.Equal(t, "remo/sensor/hub_te/state", client.SensorStateTopic("hub_te"))
	assert.Equal(t, "remo/sensor/hub_te/availability", client.AvailabilityTopic("sensor", "hub_te"))
	assert.Equal(t, "remo/button/x/press", client.ButtonCommandTopic("x"))
	assert.Equal(t, "ha", client.DiscoveryTopic())
}
