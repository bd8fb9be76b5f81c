package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform places a polytope in world space.
// Rotation is the linear part of the world matrix, InverseRotation maps world
// directions back into the body frame. Transforms are expected to be rigid.
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Mat3
	InverseRotation mgl64.Mat3
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position:        mgl64.Vec3{0, 0, 0},
		Rotation:        mgl64.Ident3(),
		InverseRotation: mgl64.Ident3(),
	}
}

// NewTransformFromQuat builds a transform from a position and an orientation.
func NewTransformFromQuat(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	r := rotation.Normalize().Mat4().Mat3()
	return Transform{
		Position:        position,
		Rotation:        r,
		InverseRotation: r.Transpose(),
	}
}

// NewTransformFromMat4 takes the world matrix of a body and its inverse, as
// handed over by the rigid-body transform provider once per tick.
func NewTransformFromMat4(m, inverse mgl64.Mat4) Transform {
	return Transform{
		Position:        m.Col(3).Vec3(),
		Rotation:        m.Mat3(),
		InverseRotation: inverse.Mat3(),
	}
}

// PointToWorld transforms a body-local point into world space.
func (t Transform) PointToWorld(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Mul3x1(p).Add(t.Position)
}

// DirectionToLocal rotates a world direction into the body frame.
// The translation does not apply to directions.
func (t Transform) DirectionToLocal(d mgl64.Vec3) mgl64.Vec3 {
	return t.InverseRotation.Mul3x1(d)
}

// Mat4 returns the homogeneous world matrix.
func (t Transform) Mat4() mgl64.Mat4 {
	m := t.Rotation.Mat4()
	m.SetCol(3, t.Position.Vec4(1))
	return m
}
