package model

// DecodeRequest asks for the thumbnail of one item of an ordered collection.
type DecodeRequest struct {
	Key            string // usually a file path
	SourceIndex    int
	SubmittedPivot int
	Generation     uint64
	Priority       int // distance to the pivot, lower runs first
	Status         RequestStatus
}

// Distance returns the absolute distance between an index and a pivot.
func Distance(index, pivot int) int {
	if index > pivot {
		return index - pivot
	}
	return pivot - index
}
