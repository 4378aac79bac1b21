package resolv

import (
	"github.com/dnslab/resolv/socket"
	"github.com/dnslab/resolv/wire"
)

// Re-exported sentinels so embedders need only this package.
var (
	// ErrAgain reports a suspension point; wait on PollIn/PollOut and
	// call Check again.
	ErrAgain = socket.ErrAgain

	// ErrIllegal reports malformed wire data.
	ErrIllegal = wire.ErrIllegal

	// ErrNoBufs reports an encode that did not fit its buffer.
	ErrNoBufs = wire.ErrNoBufs

	// ErrUnknown reports an answer mismatch or an unexpected state.
	ErrUnknown = wire.ErrUnknown
)

// RcodeError surfaces a non-zero response code as an error, for callers
// that treat SERVFAIL or NXDOMAIN answers as failures.
type RcodeError wire.Rcode

func (e RcodeError) Error() string {
	return "resolv: " + wire.Rcode(e).String()
}

// Rcode returns the response code the error wraps.
func (e RcodeError) Rcode() wire.Rcode {
	return wire.Rcode(e)
}

// Is matches any RcodeError carrying the same code.
func (e RcodeError) Is(target error) bool {
	other, ok := target.(RcodeError)
	return ok && other == e
}

// ErrorFromRcode maps a response code to an error: nil for NOERROR, a
// RcodeError otherwise.
func ErrorFromRcode(rc wire.Rcode) error {
	if rc == wire.RcodeNoError {
		return nil
	}
	return RcodeError(rc)
}
