package remote

import "github.com/relprobe/relprobe/internal/lm"

type modelRequest struct {
	Model string `json:"model,omitempty"`
}

type encodeRequest struct {
	Model     string   `json:"model,omitempty"`
	Texts     []string `json:"texts"`
	MaxLength int      `json:"max_length,omitempty"`
	Pad       bool     `json:"pad"`
}

type tokenizeRequest struct {
	Model string `json:"model,omitempty"`
	Text  string `json:"text"`
}

type decodeRequest struct {
	Model string `json:"model,omitempty"`
	IDs   []int  `json:"ids"`
}

type forwardRequest struct {
	Model string        `json:"model,omitempty"`
	Batch []lm.Encoding `json:"batch"`
}
