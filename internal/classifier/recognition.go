package classifier

import "fmt"

// UnknownLabel is the name given to output indexes that have no label.
const UnknownLabel = "unknown"

// Recognition is one ranked classification result.
type Recognition struct {
	ID         string  `json:"id"`         // output index as a decimal string
	Name       string  `json:"name"`       // label text, or "unknown"
	Confidence float32 `json:"confidence"` // normalized score
}

func (r Recognition) String() string {
	return fmt.Sprintf("Label Id = %s, Name = %s, Confidence = %v", r.ID, r.Name, r.Confidence)
}
