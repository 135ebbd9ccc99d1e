package api

import "github.com/ykhdr/rainbow-crack/pkg/messages"

type CrackRequest struct {
	Hashes []string `json:"hashes"`
}

type CrackResponse struct {
	RequestId string `json:"requestId"`
}

type StatusResponse struct {
	Status  string                `json:"status"`
	Results []messages.HashResult `json:"data"`
	Error   string                `json:"error,omitempty"`
}

type TableResponse struct {
	Hasher         string `json:"hasher"`
	Reduction      string `json:"reduction"`
	PasswordLength int    `json:"passwordLength"`
	ChainLength    int    `json:"chainLength"`
	Chains         int    `json:"chains"`
	UniqueEndings  int    `json:"uniqueEndings"`
	Index          string `json:"index"`
}
