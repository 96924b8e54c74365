package control

import "time"

type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreaker guards the transport polling loop. Threshold failures in
// one error class open the circuit; after Cooldown the next Allow admits a
// single half-open probe poll. A successful poll closes the circuit, a
// failed probe reopens it for another full cooldown.
//
// Not safe for concurrent use; the dispatcher drives it from its single
// polling goroutine.
type CircuitBreaker struct {
	Threshold int
	Cooldown  time.Duration

	state       CircuitState
	failures    map[string]int
	openedAt    time.Time
	openedClass string
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		Threshold: threshold,
		Cooldown:  cooldown,
		state:     CircuitClosed,
		failures:  map[string]int{},
	}
}

func (c *CircuitBreaker) State() CircuitState {
	return c.state
}

// Allow reports whether the next poll may go out. While open it denies
// until the cooldown elapses, then transitions to half-open and admits the
// probe.
func (c *CircuitBreaker) Allow(now time.Time) bool {
	if c.state != CircuitOpen {
		return true
	}
	if now.Sub(c.openedAt) >= c.Cooldown {
		c.state = CircuitHalfOpen
		return true
	}
	return false
}

// RecordSuccess closes the circuit and forgets accumulated failures.
func (c *CircuitBreaker) RecordSuccess() {
	c.state = CircuitClosed
	c.openedClass = ""
	c.failures = map[string]int{}
}

// RecordFailure counts a failure in the given class. A failed half-open
// probe reopens immediately; otherwise the circuit opens once the class
// reaches Threshold.
func (c *CircuitBreaker) RecordFailure(class string, now time.Time) {
	if class == "" {
		class = "unknown"
	}
	if c.state == CircuitHalfOpen {
		c.state = CircuitOpen
		c.openedAt = now
		c.openedClass = class
		return
	}
	c.failures[class]++
	if c.failures[class] >= c.Threshold {
		c.state = CircuitOpen
		c.openedAt = now
		c.openedClass = class
	}
}

// OpenedClass returns the error class that last opened the circuit, empty
// while closed.
func (c *CircuitBreaker) OpenedClass() string {
	return c.openedClass
}
