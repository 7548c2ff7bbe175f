package engine

type State string

const (
	StateLoading    State = "loading"
	StateExactDedup State = "exact_dedup"
	StateSigning    State = "signing"
	StateIndexing   State = "indexing"
	StateVerifying  State = "verifying"
	StateWriting    State = "writing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

func (state State) Terminal() bool {
	return state == StateDone || state == StateFailed
}
