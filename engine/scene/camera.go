package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	mathutils "github.com/spaghettifunk/chewman/engine/math"
)

// pitchLimit is 89 degrees, keeping the view away from gimbal lock.
const pitchLimit = float32(1.55334306)

/**
 * @brief A perspective camera described by a position and yaw/pitch angles
 * in radians. Yaw 0 and pitch 0 look down -Z.
 */
type Camera struct {
	position mgl32.Vec3
	yaw      float32
	pitch    float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	isDirty bool
	view    mgl32.Mat4
}

func NewCamera(width, height uint32) *Camera {
	c := &Camera{
		fov:  mgl32.DegToRad(45),
		near: 0.1,
		far:  100,
	}
	c.SetExtent(width, height)
	c.Reset()
	return c
}

func (c *Camera) Reset() {
	c.position = mgl32.Vec3{}
	c.yaw = 0
	c.pitch = 0
	c.isDirty = true
}

func (c *Camera) Position() mgl32.Vec3 {
	return c.position
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.position = position
	c.isDirty = true
}

// SetExtent updates the aspect ratio. A zero extent keeps the current one.
func (c *Camera) SetExtent(width, height uint32) {
	if width == 0 || height == 0 {
		if c.aspect == 0 {
			c.aspect = 1
		}
		return
	}
	c.aspect = float32(width) / float32(height)
}

func (c *Camera) SetNearFar(near, far float32) {
	c.near, c.far = near, far
}

func (c *Camera) SetFOV(radians float32) {
	c.fov = radians
}

func (c *Camera) Angles() (yaw, pitch float32) {
	return c.yaw, c.pitch
}

func (c *Camera) SetAngles(yaw, pitch float32) {
	c.yaw = yaw
	c.pitch = mathutils.Clamp(pitch, -pitchLimit, pitchLimit)
	c.isDirty = true
}

func (c *Camera) Yaw(amount float32) {
	c.SetAngles(mathutils.Wrap(c.yaw+amount, -math32.Pi, math32.Pi), c.pitch)
}

func (c *Camera) Pitch(amount float32) {
	c.SetAngles(c.yaw, c.pitch+amount)
}

// LookAt turns the camera towards target.
func (c *Camera) LookAt(target mgl32.Vec3) {
	dir := target.Sub(c.position)
	if dir.Len() == 0 {
		return
	}
	dir = dir.Normalize()
	c.SetAngles(math32.Atan2(dir.X(), -dir.Z()), math32.Asin(dir.Y()))
}

func forward(yaw, pitch float32) mgl32.Vec3 {
	return mgl32.Vec3{
		math32.Cos(pitch) * math32.Sin(yaw),
		math32.Sin(pitch),
		-math32.Cos(pitch) * math32.Cos(yaw),
	}
}

func (c *Camera) Forward() mgl32.Vec3 {
	return forward(c.yaw, c.pitch)
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.Forward().Cross(mgl32.Vec3{0, 1, 0}).Normalize()
}

func (c *Camera) MoveForward(amount float32) {
	c.SetPosition(c.position.Add(c.Forward().Mul(amount)))
}

func (c *Camera) MoveBackward(amount float32) {
	c.MoveForward(-amount)
}

func (c *Camera) MoveRight(amount float32) {
	c.SetPosition(c.position.Add(c.Right().Mul(amount)))
}

func (c *Camera) MoveLeft(amount float32) {
	c.MoveRight(-amount)
}

func (c *Camera) MoveUp(amount float32) {
	c.SetPosition(c.position.Add(mgl32.Vec3{0, amount, 0}))
}

func (c *Camera) View() mgl32.Mat4 {
	if c.isDirty {
		c.view = mgl32.LookAtV(c.position, c.position.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
		c.isDirty = false
	}
	return c.view
}

// ReflectedView mirrors the camera below a horizontal plane at height, for
// rendering water reflections.
func (c *Camera) ReflectedView(height float32) mgl32.Mat4 {
	pos := mgl32.Vec3{c.position.X(), 2*height - c.position.Y(), c.position.Z()}
	return mgl32.LookAtV(pos, pos.Add(forward(c.yaw, -c.pitch)), mgl32.Vec3{0, 1, 0})
}

// Projection is a perspective projection with the Y axis flipped for
// Vulkan clip space.
func (c *Camera) Projection() mgl32.Mat4 {
	proj := mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
	proj[5] *= -1
	return proj
}
