// Package retry bounds how many times a single consumer attempts a failing
// operation.
package retry

// DefaultMax is the default number of attempts allowed.
const DefaultMax = 3

// Counter counts consecutive failed attempts against a fixed maximum. It is
// owned by one consumer and is not safe for concurrent use.
type Counter struct {
	max      int
	attempts int
}

// NewCounter creates a Counter allowing max attempts. A max less than 1
// selects DefaultMax.
func NewCounter(max int) *Counter {
	if max < 1 {
		max = DefaultMax
	}
	return &Counter{max: max}
}

// Fail records a failed attempt and reports whether another attempt is
// allowed. Once the maximum is reached Fail keeps returning false.
func (c *Counter) Fail() bool {
	if c.attempts < c.max {
		c.attempts++
	}
	return c.attempts < c.max
}

// Attempts returns the number of failed attempts recorded.
func (c *Counter) Attempts() int {
	return c.attempts
}

// Max returns the number of attempts allowed.
func (c *Counter) Max() int {
	return c.max
}
