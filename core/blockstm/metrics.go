package blockstm

import "github.com/ethereum/go-ethereum/metrics"

// metricAborts counts validation failures that won the TryAbort race and
// actually triggered a re-execution, as opposed to validation attempts
// that found nothing wrong or lost the race to a concurrent abort.
var metricAborts = metrics.NewRegisteredCounter("blockstm/aborts", nil)
