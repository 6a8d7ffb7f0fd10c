package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/relprobe/relprobe/internal/lm"
)

// fakeServer serves a whitespace tokenizer over a tiny fixed vocabulary,
// wrapping every encoding in <s>=0 and </s>=1 with pad=2 and mask=3.
type fakeServer struct {
	vocab map[string]int
	words []string
	kind  string
}

func newFakeServer() *fakeServer {
	f := &fakeServer{vocab: map[string]int{}, kind: lm.KindMasked}
	for _, w := range []string{"<s>", "</s>", "<pad>", "<mask>", "get", "tokenizer", "specific", "prefix", "word", "this", "is"} {
		f.vocab[w] = len(f.words)
		f.words = append(f.words, w)
	}
	return f
}

func (f *fakeServer) ids(text string) []int {
	var out []int
	for _, w := range strings.Fields(text) {
		id, ok := f.vocab[w]
		if !ok {
			id = f.vocab["word"]
		}
		out = append(out, id)
	}
	return out
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			panic(err)
		}
	}
	mux.HandleFunc("/v1/model", func(w http.ResponseWriter, r *http.Request) {
		info := lm.Info{
			Model:     "fake-masked",
			Kind:      f.kind,
			VocabSize: len(f.words),
			MaxLength: 16,
			MaskToken: "<mask>",
			MaskID:    3,
			PadID:     2,
		}
		writeJSON(w, map[string]any{"info": info})
	})
	mux.HandleFunc("/v1/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req tokenizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var toks []lm.Token
		for _, id := range f.ids(req.Text) {
			toks = append(toks, lm.Token{Text: f.words[id], ID: id})
		}
		writeJSON(w, map[string]any{"tokens": toks})
	})
	mux.HandleFunc("/v1/encode", func(w http.ResponseWriter, r *http.Request) {
		var req encodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var encs []lm.Encoding
		for _, text := range req.Texts {
			ids := append([]int{0}, f.ids(text)...)
			ids = append(ids, 1)
			encs = append(encs, lm.Pad(ids, 2, req.MaxLength))
		}
		writeJSON(w, map[string]any{"encodings": encs})
	})
	mux.HandleFunc("/v1/decode", func(w http.ResponseWriter, r *http.Request) {
		var req decodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var parts []string
		for _, id := range req.IDs {
			parts = append(parts, f.words[id])
		}
		writeJSON(w, map[string]any{"text": strings.Join(parts, " ")})
	})
	mux.HandleFunc("/v1/forward", func(w http.ResponseWriter, r *http.Request) {
		var req forwardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logits := make([][][]float32, len(req.Batch))
		for i, enc := range req.Batch {
			rows := make([][]float32, len(enc.IDs))
			for p := range rows {
				rows[p] = make([]float32, len(f.words))
			}
			logits[i] = rows
		}
		writeJSON(w, map[string]any{"logits": logits})
	})
	return mux
}

func TestDialProbesAffixes(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(newFakeServer().handler())
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	info := c.Info()
	if got, want := len(info.PrefixIDs), 1; got != want {
		t.Fatalf("prefix ids = %v, want 1 id", info.PrefixIDs)
	}
	if info.PrefixIDs[0] != 0 {
		t.Fatalf("prefix id = %d, want 0", info.PrefixIDs[0])
	}
	if got := info.SuffixIDs; len(got) != 1 || got[0] != 1 {
		t.Fatalf("suffix ids = %v, want [1]", got)
	}
}

func TestDialRejectsCausal(t *testing.T) {
	t.Parallel()
	f := newFakeServer()
	f.kind = lm.KindCausal
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	_, err := Dial(context.Background(), srv.URL, Options{})
	if !errors.Is(err, lm.ErrCausalModel) {
		t.Fatalf("Dial causal err = %v, want ErrCausalModel", err)
	}
}

func TestDialMaxLengthOverride(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(newFakeServer().handler())
	defer srv.Close()

	if _, err := Dial(context.Background(), srv.URL, Options{MaxLength: 64}); err == nil {
		t.Fatal("Dial with max length above the model window should fail")
	}
	c, err := Dial(context.Background(), srv.URL, Options{MaxLength: 8})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if got := c.Info().MaxLength; got != 8 {
		t.Fatalf("MaxLength = %d, want 8", got)
	}
}

func TestEncodeTooLong(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(newFakeServer().handler())
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL, Options{MaxLength: 8})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	// six words plus <s> and </s> fill the whole 8-position window
	_, err = c.Encode(context.Background(), "this is word word word word")
	if !errors.Is(err, lm.ErrSequenceTooLong) {
		t.Fatalf("Encode err = %v, want ErrSequenceTooLong", err)
	}
}

func TestForwardShape(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(newFakeServer().handler())
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	enc, err := c.Encode(context.Background(), "this is word")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	logits, err := c.Forward(context.Background(), []lm.Encoding{enc, enc})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(logits) != 2 {
		t.Fatalf("got %d rows, want 2", len(logits))
	}
	if len(logits[0]) != len(enc.IDs) {
		t.Fatalf("got %d positions, want %d", len(logits[0]), len(enc.IDs))
	}
	if len(logits[0][0]) != c.Info().VocabSize {
		t.Fatalf("got %d vocab, want %d", len(logits[0][0]), c.Info().VocabSize)
	}
}

func TestErrorPayload(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"no such model"}}`))
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), srv.URL, Options{Model: "missing"})
	if err == nil || !strings.Contains(err.Error(), "no such model") {
		t.Fatalf("err = %v, want server message surfaced", err)
	}
}
