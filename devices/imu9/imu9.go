// Package imu9 is an example 9-axis inertial measurement unit device
// plug-in, grounded in the original RhAL's `Lib/Devices/IMU.hpp` register
// layout: three axes each of accelerometer, gyroscope and magnetometer,
// declared as one contiguous, periodically-read address range so the
// Manager's batch computation merges all nine into a single bus
// transaction per cycle.
package imu9

import "github.com/rhoban/rhal"

// TypeIMU9 is the scan-time type number this plug-in registers under.
const TypeIMU9 = 201

const (
	addrAccelX = 0x00
	addrAccelY = 0x02
	addrAccelZ = 0x04
	addrGyroX  = 0x06
	addrGyroY  = 0x08
	addrGyroZ  = 0x0A
	addrMagX   = 0x0C
	addrMagY   = 0x0E
	addrMagZ   = 0x10
)

const (
	accelScale = 1.0 / 256.0  // g per raw count
	gyroScale  = 1.0 / 14.375 // deg/s per raw count
	magScale   = 1.0 / 1090.0 // gauss per raw count
)

// IMU9 is an example inertial measurement unit exposing scaled
// accelerometer, gyroscope, and magnetometer axes, all read-only and
// periodically sampled every cycle.
type IMU9 struct {
	*rhal.BaseDevice

	AccelX, AccelY, AccelZ *rhal.Register
	GyroX, GyroY, GyroZ    *rhal.Register
	MagX, MagY, MagZ       *rhal.Register
}

// New constructs an IMU9 plug-in; it returns *IMU9, so it is registered
// under TypeIMU9 through an rhal.DeviceFactory closure that calls it.
func New(id int, name string) *IMU9 {
	return &IMU9{BaseDevice: rhal.NewBaseDevice(id, name, "imu9.IMU9")}
}

func axisRegister(name string, addr int, scale float64) *rhal.Register {
	codec := rhal.ScaledCodec{Raw: rhal.IntCodec{Width: 2}, Scale: scale}
	return rhal.NewRegister(name, addr, codec, rhal.WithReadOnly(), rhal.WithPeriod(1))
}

// Init declares all nine axis registers contiguously from addrAccelX to
// addrMagZ+1, exercising the Manager's contiguous-range read batching.
func (d *IMU9) Init(registers *rhal.RegistersList, params *rhal.ParametersList) {
	d.BaseDevice.Init(registers, params)

	d.AccelX = axisRegister("accelX", addrAccelX, accelScale)
	d.AccelY = axisRegister("accelY", addrAccelY, accelScale)
	d.AccelZ = axisRegister("accelZ", addrAccelZ, accelScale)
	d.GyroX = axisRegister("gyroX", addrGyroX, gyroScale)
	d.GyroY = axisRegister("gyroY", addrGyroY, gyroScale)
	d.GyroZ = axisRegister("gyroZ", addrGyroZ, gyroScale)
	d.MagX = axisRegister("magX", addrMagX, magScale)
	d.MagY = axisRegister("magY", addrMagY, magScale)
	d.MagZ = axisRegister("magZ", addrMagZ, magScale)

	for _, r := range []*rhal.Register{
		d.AccelX, d.AccelY, d.AccelZ,
		d.GyroX, d.GyroY, d.GyroZ,
		d.MagX, d.MagY, d.MagZ,
	} {
		_ = registers.Add(r)
	}
}

// Accel returns the current accelerometer reading in g, per axis.
func (d *IMU9) Accel() (x, y, z float64) {
	return d.AccelX.Read().Value, d.AccelY.Read().Value, d.AccelZ.Read().Value
}

// Gyro returns the current gyroscope reading in degrees/second, per axis.
func (d *IMU9) Gyro() (x, y, z float64) {
	return d.GyroX.Read().Value, d.GyroY.Read().Value, d.GyroZ.Read().Value
}

// Mag returns the current magnetometer reading in gauss, per axis.
func (d *IMU9) Mag() (x, y, z float64) {
	return d.MagX.Read().Value, d.MagY.Read().Value, d.MagZ.Read().Value
}
