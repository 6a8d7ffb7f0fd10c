// Package remote implements the lm collaborator interfaces over the
// HTTP/JSON protocol of a model server. One Client speaks to one server and
// one model; the experiment layer opens a fresh client per configuration.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/relprobe/relprobe/internal/lm"
	"github.com/relprobe/relprobe/internal/logger"
)

// probeText is encoded once at dial time to discover which special ids the
// tokenizer wraps around a sentence. Tokenizers disagree here (<s>…</s>,
// [CLS]…[SEP], …), so the client measures instead of guessing.
const probeText = "get tokenizer specific prefix"

// Options configures Dial. The zero value is usable when the server serves
// a single model and no auth.
type Options struct {
	// Model selects a model card on the server. Empty means the server
	// default.
	Model string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// MaxLength caps the encoding window. Zero keeps the model's own
	// window; a value above the model window is an error.
	MaxLength int

	// RequestsPerSecond throttles the client. Zero disables throttling.
	RequestsPerSecond float64

	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client talks to a model server. It implements lm.Tokenizer and lm.Model.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     logger.Logger
	info    lm.Info
}

// Dial opens a client, fetches the model description and probes the
// tokenizer's sentence prefix and suffix. Causal models are rejected.
func Dial(ctx context.Context, baseURL string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote: base URL required")
	}
	c := &Client{
		baseURL: baseURL,
		model:   opts.Model,
		apiKey:  opts.APIKey,
		http:    opts.HTTPClient,
		log:     opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 120 * time.Second}
	}
	if c.log == nil {
		c.log = logger.Default()
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	var payload struct {
		Info lm.Info `json:"info"`
	}
	if err := c.post(ctx, "/v1/model", modelRequest{Model: opts.Model}, &payload); err != nil {
		return nil, fmt.Errorf("remote: fetch model info: %w", err)
	}
	c.info = payload.Info
	if !c.info.Masked() {
		return nil, fmt.Errorf("remote: model %s is %s: %w", c.info.Model, c.info.Kind, lm.ErrCausalModel)
	}
	if opts.MaxLength > 0 {
		if opts.MaxLength > c.info.MaxLength {
			return nil, fmt.Errorf("remote: model window %d < requested max length %d", c.info.MaxLength, opts.MaxLength)
		}
		c.info.MaxLength = opts.MaxLength
	}

	if len(c.info.PrefixIDs) == 0 && len(c.info.SuffixIDs) == 0 {
		if err := c.probeAffixes(ctx); err != nil {
			return nil, fmt.Errorf("remote: probe tokenizer affixes: %w", err)
		}
	}
	c.log.Debug("dialed model server",
		"model", c.info.Model, "vocab", c.info.VocabSize, "max_length", c.info.MaxLength)
	return c, nil
}

// probeAffixes encodes a fixed sentence and diffs it against its plain
// tokenization to find the special ids added before and after the text.
func (c *Client) probeAffixes(ctx context.Context) error {
	toks, err := c.Tokenize(ctx, probeText)
	if err != nil {
		return err
	}
	if len(toks) == 0 {
		return fmt.Errorf("probe produced no tokens")
	}
	enc, err := c.Encode(ctx, probeText)
	if err != nil {
		return err
	}
	ids := enc.IDs[:enc.Length()]
	first, last := -1, -1
	for i, id := range ids {
		if first < 0 && id == toks[0].ID {
			first = i
		}
		if id == toks[len(toks)-1].ID {
			last = i
		}
	}
	if first < 0 || last < 0 {
		return fmt.Errorf("probe tokens missing from encoding")
	}
	c.info.PrefixIDs = append([]int(nil), ids[:first]...)
	c.info.SuffixIDs = append([]int(nil), ids[last+1:]...)
	return nil
}

// Info returns the description captured at dial time, with any MaxLength
// override applied.
func (c *Client) Info() lm.Info {
	return c.info
}

// Encode implements lm.Tokenizer.
func (c *Client) Encode(ctx context.Context, text string) (lm.Encoding, error) {
	var payload struct {
		Encodings []lm.Encoding `json:"encodings"`
	}
	req := encodeRequest{Model: c.model, Texts: []string{text}, MaxLength: c.info.MaxLength, Pad: true}
	if err := c.post(ctx, "/v1/encode", req, &payload); err != nil {
		return lm.Encoding{}, err
	}
	if len(payload.Encodings) != 1 {
		return lm.Encoding{}, fmt.Errorf("remote: got %d encodings for 1 text", len(payload.Encodings))
	}
	enc := payload.Encodings[0]
	if enc.Length() >= c.info.MaxLength {
		return lm.Encoding{}, fmt.Errorf("remote: %q needs %d of %d positions: %w",
			text, enc.Length(), c.info.MaxLength, lm.ErrSequenceTooLong)
	}
	return enc, nil
}

// Tokenize implements lm.Tokenizer.
func (c *Client) Tokenize(ctx context.Context, text string) ([]lm.Token, error) {
	var payload struct {
		Tokens []lm.Token `json:"tokens"`
	}
	if err := c.post(ctx, "/v1/tokenize", tokenizeRequest{Model: c.model, Text: text}, &payload); err != nil {
		return nil, err
	}
	return payload.Tokens, nil
}

// Decode implements lm.Tokenizer. Special tokens stay in the output.
func (c *Client) Decode(ctx context.Context, ids []int) (string, error) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := c.post(ctx, "/v1/decode", decodeRequest{Model: c.model, IDs: ids}, &payload); err != nil {
		return "", err
	}
	return payload.Text, nil
}

// Forward implements lm.Model.
func (c *Client) Forward(ctx context.Context, batch []lm.Encoding) ([][][]float32, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	var payload struct {
		Logits [][][]float32 `json:"logits"`
	}
	if err := c.post(ctx, "/v1/forward", forwardRequest{Model: c.model, Batch: batch}, &payload); err != nil {
		return nil, err
	}
	if len(payload.Logits) != len(batch) {
		return nil, fmt.Errorf("remote: got logits for %d of %d rows", len(payload.Logits), len(batch))
	}
	return payload.Logits, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		var fail struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if jerr := json.Unmarshal(raw, &fail); jerr == nil && fail.Error.Message != "" {
			return fmt.Errorf("remote: %s: %s", path, fail.Error.Message)
		}
		return fmt.Errorf("remote: %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s response: %w", path, err)
	}
	return nil
}
