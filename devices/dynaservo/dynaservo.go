// Package dynaservo is an example smart-servo device plug-in, grounded in
// the original RhAL's `Lib/Devices/MX.hpp`/`DXL.hpp` register layouts. It is
// a collaborator, not core: spec.md §1 names device-specific register
// layouts as "a small plug-in that declares registers and parameters; only
// the declaration contract is core".
package dynaservo

import (
	"github.com/rhoban/rhal"
)

// TypeMX64 is the scan-time type number this plug-in registers under,
// matching the real Dynamixel MX-64's model number.
const TypeMX64 = 310

const (
	addrTorqueEnable = 0x18
	addrAngleLimitCCW = 0x06
	addrAngleLimitCW  = 0x08
	addrGoal          = 0x1E
	addrPosition      = 0x24
	addrSpeed         = 0x26
	addrLoad          = 0x28
)

// degreesPerStep converts a 12-bit position count (0..4095) into degrees
// over the servo's 360 degree range, matching the original's
// FuncConvEncode/FuncConvDecode position conversion closures.
const degreesPerStep = 360.0 / 4096.0

func positionCodec() rhal.Codec {
	return rhal.ScaledCodec{Raw: rhal.UintCodec{Width: 2}, Scale: degreesPerStep}
}

// MX64 is an example Dynamixel-style smart servo: a goal position the user
// writes, and three periodically-read telemetry registers.
type MX64 struct {
	*rhal.BaseDevice

	Goal         *rhal.Register
	Position     *rhal.Register
	Speed        *rhal.Register
	Load         *rhal.Register
	TorqueEnable *rhal.Register
	AngleLimitCW *rhal.Register
	AngleLimitCCW *rhal.Register

	angleLimitCWParam  *rhal.Parameter
	angleLimitCCWParam *rhal.Parameter
}

// New constructs an MX64 plug-in. It returns *MX64, so it is registered
// with an Aggregate for scan()-time creation through a DeviceFactory
// closure:
//
//	mgr.Registry().RegisterFactory(dynaservo.TypeMX64, "dynaservo.MX64", func(id int, name string) rhal.Device {
//		return dynaservo.New(id, name)
//	})
func New(id int, name string) *MX64 {
	return &MX64{BaseDevice: rhal.NewBaseDevice(id, name, "dynaservo.MX64")}
}

// Init declares this servo's registers: a periodically-read telemetry group
// (position, speed, load) kept address-contiguous so the Manager batches
// them into a single bus transaction (spec.md §8 scenario 3), plus the
// goal and torque-enable registers (written, never periodically read) and the two angle-limit
// registers SetConfig propagates parameter values onto.
func (d *MX64) Init(registers *rhal.RegistersList, params *rhal.ParametersList) {
	d.BaseDevice.Init(registers, params)

	d.TorqueEnable = rhal.NewRegister("torqueEnable", addrTorqueEnable, rhal.BoolCodec{})
	d.AngleLimitCCW = rhal.NewRegister("angleLimitCCW", addrAngleLimitCCW, positionCodec(), rhal.WithRange(0, 360, degreesPerStep))
	d.AngleLimitCW = rhal.NewRegister("angleLimitCW", addrAngleLimitCW, positionCodec(), rhal.WithRange(0, 360, degreesPerStep))
	d.Goal = rhal.NewRegister("goal", addrGoal, positionCodec(),
		rhal.WithAggregation(rhal.AggregateLast), rhal.WithRange(0, 360, degreesPerStep))
	d.Position = rhal.NewRegister("position", addrPosition, positionCodec(),
		rhal.WithReadOnly(), rhal.WithPeriod(1), rhal.WithRange(0, 360, degreesPerStep))
	d.Speed = rhal.NewRegister("speed", addrSpeed, rhal.IntCodec{Width: 2},
		rhal.WithReadOnly(), rhal.WithPeriod(1))
	d.Load = rhal.NewRegister("load", addrLoad, rhal.IntCodec{Width: 2},
		rhal.WithReadOnly(), rhal.WithPeriod(1))

	for _, r := range []*rhal.Register{d.TorqueEnable, d.AngleLimitCCW, d.AngleLimitCW, d.Goal, d.Position, d.Speed, d.Load} {
		_ = registers.Add(r)
	}

	d.angleLimitCWParam = rhal.NewNumberParameter("angleLimitCW", 360)
	d.angleLimitCCWParam = rhal.NewNumberParameter("angleLimitCCW", 0)
	_ = params.Add(d.angleLimitCWParam)
	_ = params.Add(d.angleLimitCCWParam)
}

// SetConfig propagates the angle-limit parameters onto their hardware
// registers, the device-specific operation spec.md §4.3 names explicitly.
// It is not called automatically from Init/OnInit: application code invokes
// it once the Manager is wired to a live Protocol, so the writes it
// triggers have somewhere to go: in immediate mode they are forced onto the
// bus before SetConfig returns; in scheduled mode they go out with the next
// cycle (angle-limit registers are not periodically read).
func (d *MX64) SetConfig() error {
	if err := d.AngleLimitCW.Write(d.angleLimitCWParam.Number()); err != nil {
		return err
	}
	return d.AngleLimitCCW.Write(d.angleLimitCCWParam.Number())
}
