package driver

import "time"

// WorkerResult holds one transaction worker's operation counters and its
// elapsed run time. Each worker owns its result exclusively while running
// and hands it to the orchestrator on join.
type WorkerResult struct {
	Reads   uint64
	Upserts uint64
	RMWs    uint64
	Elapsed time.Duration
}

// Ops returns the total operations this worker executed.
func (r WorkerResult) Ops() uint64 {
	return r.Reads + r.Upserts + r.RMWs
}

// Summary aggregates the results of a completed transaction phase.
// Elapsed is summed across workers, i.e. thread-time rather than wall
// time.
type Summary struct {
	Workers int
	Reads   uint64
	Upserts uint64
	RMWs    uint64
	Elapsed time.Duration
}

// TotalOps returns the total operations executed across all workers.
func (s Summary) TotalOps() uint64 {
	return s.Reads + s.Upserts + s.RMWs
}

// Throughput returns total operations divided by total thread-seconds:
// the average per-thread ops/second, not wall-clock aggregate throughput.
// This normalization is a deliberate historical choice and must stay as
// is so results remain comparable across runs.
func (s Summary) Throughput() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.TotalOps()) / secs
}
