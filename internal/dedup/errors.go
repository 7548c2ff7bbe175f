package dedup

import "fmt"

// ResourceExhaustionError cancels a run that exceeded a configured limit.
// Nothing has been committed when it is returned, so the run can be retried
// with smaller shards or a higher limit.
type ResourceExhaustionError struct {
	Resource string
	Limit    int
	Observed int
}

func (err *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("resource exhausted: %s reached %d (limit %d)", err.Resource, err.Observed, err.Limit)
}
