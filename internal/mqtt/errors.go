package mqtt

import "fmt"

// ConnectionError reports a connection attempt that did not end with the
// broker accepting the session. Code is the CONNACK return code, or
// packets.ErrNetworkError when the broker was never reached.
type ConnectionError struct {
	Code byte
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Connection failed with code %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("Connection failed with code %d", e.Code)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
