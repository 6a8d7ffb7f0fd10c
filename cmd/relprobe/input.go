package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relprobe/relprobe/internal/prompt"
)

// parsePairs reads head:tail arguments into pairs.
func parsePairs(args []string) ([]prompt.Pair, error) {
	pairs := make([]prompt.Pair, 0, len(args))
	for _, arg := range args {
		head, tail, ok := strings.Cut(arg, ":")
		head = strings.TrimSpace(head)
		tail = strings.TrimSpace(tail)
		if !ok || head == "" || tail == "" {
			return nil, fmt.Errorf("bad pair %q: want head:tail", arg)
		}
		pairs = append(pairs, prompt.Pair{Head: head, Tail: tail})
	}
	return pairs, nil
}

// readPairs loads pairs from a JSON lines file, one {"head","tail"} object
// per line. Blank lines are skipped.
func readPairs(path string) ([]prompt.Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var pairs []prompt.Pair
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var p prompt.Pair
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		if p.Head == "" || p.Tail == "" {
			return nil, fmt.Errorf("%s:%d: pair needs head and tail", path, n)
		}
		pairs = append(pairs, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pairs, nil
}

// splitList splits a comma separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readSentences returns the args when given, otherwise one sentence per
// stdin line.
func readSentences(args []string, stdin io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	var sentences []string
	sc := bufio.NewScanner(stdin)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		sentences = append(sentences, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return sentences, nil
}

// writeResult prints v as indented JSON to stdout, or to path when set.
func writeResult(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
