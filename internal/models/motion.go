package models

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// YawRateEpsilon is the yaw rate magnitude below which turn-rate models use
// their straight-line branch instead of dividing by the yaw rate.
const YawRateEpsilon = 1e-4

// State vector indices.
const (
	IdxX = iota
	IdxY
	IdxYaw
	IdxSpeed
	IdxYawRate
	IdxAccel
)

// Motion is a process model x' = f(x, dt).
type Motion interface {
	Name() string
	StateDim() int
	Propagate(x mat.Vector, dt float64) *mat.VecDense
}

// CHCV is the 4-state constant-heading, constant-velocity model
// [x, y, yaw, speed]. Heading and speed are held; position advances along
// the heading.
type CHCV struct{}

func (CHCV) Name() string  { return MotionCHCV4 }
func (CHCV) StateDim() int { return 4 }

func (CHCV) Propagate(x mat.Vector, dt float64) *mat.VecDense {
	out := mat.VecDenseCopyOf(x)
	yaw, v := x.AtVec(IdxYaw), x.AtVec(IdxSpeed)
	out.SetVec(IdxX, x.AtVec(IdxX)+v*dt*math.Cos(yaw))
	out.SetVec(IdxY, x.AtVec(IdxY)+v*dt*math.Sin(yaw))
	return out
}

// CTRV is the 5-state constant turn rate and velocity model
// [x, y, yaw, speed, yaw rate].
type CTRV struct{}

func (CTRV) Name() string  { return MotionCTRV5 }
func (CTRV) StateDim() int { return 5 }

func (CTRV) Propagate(x mat.Vector, dt float64) *mat.VecDense {
	out := mat.VecDenseCopyOf(x)
	px, py := x.AtVec(IdxX), x.AtVec(IdxY)
	yaw, v, w := x.AtVec(IdxYaw), x.AtVec(IdxSpeed), x.AtVec(IdxYawRate)

	if math.Abs(w) < YawRateEpsilon {
		out.SetVec(IdxX, px+v*dt*math.Cos(yaw))
		out.SetVec(IdxY, py+v*dt*math.Sin(yaw))
	} else {
		yawNext := yaw + w*dt
		out.SetVec(IdxX, px+(v/w)*(math.Sin(yawNext)-math.Sin(yaw)))
		out.SetVec(IdxY, py+(v/w)*(math.Cos(yaw)-math.Cos(yawNext)))
	}
	out.SetVec(IdxYaw, yaw+w*dt)
	return out
}

// CTRA is the 6-state constant turn rate and acceleration model
// [x, y, yaw, speed, yaw rate, acceleration].
type CTRA struct{}

func (CTRA) Name() string  { return MotionCTRA6 }
func (CTRA) StateDim() int { return 6 }

func (CTRA) Propagate(x mat.Vector, dt float64) *mat.VecDense {
	out := mat.VecDenseCopyOf(x)
	px, py := x.AtVec(IdxX), x.AtVec(IdxY)
	yaw, v := x.AtVec(IdxYaw), x.AtVec(IdxSpeed)
	w, a := x.AtVec(IdxYawRate), x.AtVec(IdxAccel)

	if math.Abs(w) < YawRateEpsilon {
		d := v*dt + 0.5*a*dt*dt
		out.SetVec(IdxX, px+d*math.Cos(yaw))
		out.SetVec(IdxY, py+d*math.Sin(yaw))
	} else {
		yawNext := yaw + w*dt
		vNext := v + a*dt
		w2 := w * w
		out.SetVec(IdxX, px+(vNext*w*math.Sin(yawNext)+a*math.Cos(yawNext)-v*w*math.Sin(yaw)-a*math.Cos(yaw))/w2)
		out.SetVec(IdxY, py+(-vNext*w*math.Cos(yawNext)+a*math.Sin(yawNext)+v*w*math.Cos(yaw)-a*math.Sin(yaw))/w2)
	}
	out.SetVec(IdxYaw, yaw+w*dt)
	out.SetVec(IdxSpeed, v+a*dt)
	return out
}
