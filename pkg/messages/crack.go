package messages

// Result statuses of a single digest.
const (
	StatusFound    = "found"
	StatusNotFound = "not_found"
	StatusInvalid  = "invalid"
	StatusError    = "error"
)

// CrackRequest is queued to a worker. Hashes are 16 hex characters each.
type CrackRequest struct {
	RequestId string   `json:"requestId" bson:"request_id"`
	Hashes    []string `json:"hashes" bson:"hashes"`
}

type HashResult struct {
	Hash     string `json:"hash" bson:"hash"`
	Status   string `json:"status" bson:"status"`
	Password string `json:"password,omitempty" bson:"password,omitempty"`
	Error    string `json:"error,omitempty" bson:"error,omitempty"`
}

type CrackResponse struct {
	RequestId string       `json:"requestId" bson:"request_id"`
	Results   []HashResult `json:"results" bson:"results"`
}
