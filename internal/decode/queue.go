package decode

import (
	"container/heap"

	"github.com/ytget/manga-reader/internal/model"
)

type item struct {
	req   model.DecodeRequest
	seq   uint64 // submission order, breaks priority ties
	index int    // position in the heap
}

// requestQueue is a min-heap over (priority, seq).
type requestQueue []*item

var _ heap.Interface = (*requestQueue)(nil)

func (q requestQueue) Len() int { return len(q) }

func (q requestQueue) Less(i, j int) bool {
	if q[i].req.Priority != q[j].req.Priority {
		return q[i].req.Priority < q[j].req.Priority
	}
	return q[i].seq < q[j].seq
}

func (q requestQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *requestQueue) Push(x any) {
	it := x.(*item)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}

// rescore recomputes every priority against pivot and restores heap order.
func (q *requestQueue) rescore(pivot int) {
	for _, it := range *q {
		it.req.Priority = model.Distance(it.req.SourceIndex, pivot)
	}
	heap.Init(q)
}
