package core

import (
	"errors"
)

// ErrNoModel is returned when classification is requested but no trained
// model artifact exists. Callers treat it as zero throughput, not a crash.
var ErrNoModel = errors.New("no trained model artifact available")

// ErrOracleParse is returned when the naming oracle's response is not valid
// structured output. The affected cluster is dropped; others proceed.
var ErrOracleParse = errors.New("unparseable naming oracle response")
