package packet

import "errors"

// ErrMalformedInput is the sentinel for any length/structure violation of
// I1–I3; wrapped with the specific offending check in deriveMetadata and in
// the resize/option routines below. Callers on the write_packet boundary
// treat any error wrapping this one as "drop and continue" per spec.md §7.
var ErrMalformedInput = errors.New("packet: malformed input")

// ErrNoOptionSpace is returned by InjectIPOptions when no option set
// satisfying the request fits within the remaining IP header space.
var ErrNoOptionSpace = errors.New("packet: no option space available")
