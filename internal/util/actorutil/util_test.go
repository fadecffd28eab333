package actorutil

import (
	"testing"

	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsedMQTTCommandToCommand(t *testing.T) {
	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: "ac_1",
		Command:  mqtt.COMMAND_SWITCH,
		Payload:  "on",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SwitchCommandRequest{SwitchId: "ac_1", On: true}, cmd)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: domain.BUTTON_ID_NOTICE_DISMISS,
		Command:  mqtt.COMMAND_BUTTON,
		Payload:  "PRESS",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ButtonPressRequest{ButtonId: domain.BUTTON_ID_NOTICE_DISMISS}, cmd)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: "ac_1",
		Command:  mqtt.COMMAND_SWITCH,
		Payload:  "toggle",
	})
	assert.Error(t, err)
}
