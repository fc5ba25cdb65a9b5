package classifier

import (
	"container/heap"
	"strconv"
)

// recognitionHeap is a min-heap on confidence, the root is the weakest of
// the current top k.
type recognitionHeap []Recognition

func (h recognitionHeap) Len() int           { return len(h) }
func (h recognitionHeap) Less(i, j int) bool { return h[i].Confidence < h[j].Confidence }
func (h recognitionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *recognitionHeap) Push(x any) {
	*h = append(*h, x.(Recognition))
}

func (h *recognitionHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	*h = old[:n-1]
	return r
}

// Rank returns at most k recognitions whose confidence is strictly above
// threshold, in descending confidence order. Every score in raw is
// considered; indexes without a label are named UnknownLabel. Order among
// equal confidences is not defined.
func Rank(labels []string, enc Encoding, raw []byte, k int, threshold float32) []Recognition {
	if k <= 0 {
		return []Recognition{}
	}

	n := OutputWidth(enc, raw)
	h := make(recognitionHeap, 0, min(k, n))

	for i := range n {
		confidence := enc.Normalize(raw, i)
		// Written as a negation so NaN scores are dropped.
		if !(confidence > threshold) {
			continue
		}
		if h.Len() == k {
			if confidence <= h[0].Confidence {
				continue
			}
			h[0] = newRecognition(labels, i, confidence)
			heap.Fix(&h, 0)
			continue
		}
		heap.Push(&h, newRecognition(labels, i, confidence))
	}

	results := make([]Recognition, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(&h).(Recognition)
	}
	return results
}

func newRecognition(labels []string, i int, confidence float32) Recognition {
	name := UnknownLabel
	if i < len(labels) {
		name = labels[i]
	}
	return Recognition{ID: strconv.Itoa(i), Name: name, Confidence: confidence}
}
