package main

import (
	"math/rand"
	"time"
)

// wallClock implements gossip.Clock using the system clock.
type wallClock struct{}

func (wallClock) NowMillis() int64 { return time.Now().UnixMilli() }

// processRand implements member.Rand using a process-seeded PRNG. Gossip
// peer sampling only needs a good distribution, not unpredictability.
type processRand struct{}

func (processRand) Uint32() uint32 { return rng.Uint32() }

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))
