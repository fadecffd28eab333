package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/berfenger/remo2mqtt/internal/core/port"
	"github.com/berfenger/remo2mqtt/pkg/natureremo"

	"go.uber.org/zap"
)

var (
	ErrUnknownAppliance     = errors.New("unknown appliance")
	ErrUnsupportedAppliance = errors.New("appliance has no power control")
)

// AppliancePowerControl turns ACs and lights on and off through the cloud.
// State is never set locally, it arrives with the refresh requested after the command.
type AppliancePowerControl struct {
	Commander port.ApplianceCommander
	Source    port.Snapshotter
	Logger    *zap.Logger
}

func (c *AppliancePowerControl) SetPower(ctx context.Context, applianceId string, on bool) error {
	appliance, ok := c.Source.Get().Appliance(applianceId)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAppliance, applianceId)
	}

	var err error
	switch appliance.Type {
	case natureremo.APPLIANCE_TYPE_AC:
		err = c.Commander.SetAirconPower(ctx, applianceId, on)
	case natureremo.APPLIANCE_TYPE_LIGHT:
		err = c.Commander.SetLightPower(ctx, applianceId, on)
	default:
		return fmt.Errorf("%w: %s is %s", ErrUnsupportedAppliance, applianceId, appliance.Type)
	}
	if err != nil {
		c.Logger.Warn("power command failed", zap.String("appliance", applianceId), zap.Bool("on", on), zap.Error(err))
		return err
	}

	c.Logger.Debug("power command sent", zap.String("appliance", applianceId), zap.Bool("on", on))
	c.Source.RequestRefresh()
	return nil
}
