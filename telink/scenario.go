package telink

// DefaultSpeed is the animation speed used when none is given.
const DefaultSpeed = 7

// Scenario is an ordered list of colors with per-step animation speeds that
// the device cycles through. The color and speed sequences always have the
// same length; speeds are masked to 4 bits on the way in.
type Scenario struct {
	colors []Color
	speeds []byte
}

// Add appends a color with the default speed.
func (s *Scenario) Add(c Color) {
	s.AddWithSpeed(c, DefaultSpeed)
}

// AddWithSpeed appends a color with an animation speed (0..15).
func (s *Scenario) AddWithSpeed(c Color, speed byte) {
	s.colors = append(s.colors, c)
	s.speeds = append(s.speeds, speed&0x0F)
}

// Replace swaps the color at index i, keeping its speed.
func (s *Scenario) Replace(i int, c Color) {
	s.colors[i] = c
}

// Remove deletes the step at index i from both sequences.
func (s *Scenario) Remove(i int) {
	s.colors = append(s.colors[:i], s.colors[i+1:]...)
	s.speeds = append(s.speeds[:i], s.speeds[i+1:]...)
}

// SetSpeed changes the animation speed (0..15) of the step at index i.
func (s *Scenario) SetSpeed(i int, speed byte) {
	s.speeds[i] = speed & 0x0F
}

// Size returns the number of steps.
func (s *Scenario) Size() int {
	return len(s.colors)
}

// Color returns the color of step i.
func (s *Scenario) Color(i int) Color {
	return s.colors[i]
}

// Speed returns the animation speed of step i.
func (s *Scenario) Speed(i int) byte {
	return s.speeds[i]
}

// StepBytes returns the 12-byte wire form of step i: a 4-byte header
// (slot byte, last-step flag, speed, packed index and count) followed by
// the color bytes. Out-of-range indices panic.
func (s *Scenario) StepBytes(i int) []byte {
	n := len(s.colors)
	isLast := byte(0)
	if i == n-1 {
		isLast = 1
	}
	step := make([]byte, 0, 12)
	step = append(step, 0, isLast, 0x10+s.speeds[i], byte(0x10*i+n))
	return append(step, s.colors[i].Bytes()...)
}
