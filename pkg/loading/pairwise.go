// Package loading turns edge-list text files into graph mutations.
//
// The pairwise format has one edge per line: a source token, a target token
// and an optional numeric weight, separated by whitespace. Tokens may be
// double-quoted to contain spaces, and everything after "//" is a comment.
//
// Two details differ from readers that scan for "//" before looking at
// quotes and convert the weight with atof: a "//" inside double quotes is
// part of the token, so "http://host" is one node name, and a third token
// that is not a number leaves the pair unweighted (HasWeight false) instead
// of giving it weight 0.
//
//	// a comment
//	a b
//	"node one" "node two" 0.5
//
// Files are parsed concurrently, optionally through a persistent parse cache,
// and then applied to a graph.Store inside a single transaction so that
// observers see the whole file appear at once.
package loading

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrCancelled is returned when the context is cancelled mid-load. It
	// wraps the context's error as well.
	ErrCancelled = errors.New("loading cancelled")

	// ErrCacheMiss is returned by Cache.Get for unknown content.
	ErrCacheMiss = errors.New("cache miss")
)

// maxLineLength bounds a single line of input.
const maxLineLength = 1 << 20

// Pair is one parsed line: an edge between two named nodes.
type Pair struct {
	Source    string  `json:"s"`
	Target    string  `json:"t"`
	Weight    float64 `json:"w,omitempty"`
	HasWeight bool    `json:"hw,omitempty"`
}

// ProgressFunc receives the share of the input consumed so far, 0 to 100. It
// is only called when the value increases.
type ProgressFunc func(percent int)

// ParsePairwise reads the pairwise format from r. size is the total input
// length used for progress reporting; pass 0 when unknown. Lines with fewer
// than two tokens are skipped. An unparsable weight is dropped rather than
// read as 0. The context is checked once per line.
func ParsePairwise(ctx context.Context, r io.Reader, size int64, progress ProgressFunc) ([]Pair, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var (
		pairs    []Pair
		consumed int64
		percent  int
	)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		line := scanner.Text()
		consumed += int64(len(line)) + 1

		if tokens := tokenize(line); len(tokens) >= 2 {
			pair := Pair{Source: tokens[0], Target: tokens[1]}
			if len(tokens) >= 3 {
				if w, err := strconv.ParseFloat(tokens[2], 64); err == nil {
					pair.Weight, pair.HasWeight = w, true
				}
			}
			pairs = append(pairs, pair)
		}

		if progress != nil && size > 0 {
			if p := int(min(consumed, size) * 100 / size); p > percent {
				percent = p
				progress(percent)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading pairwise input: %w", err)
	}
	return pairs, nil
}

// tokenize splits a line on whitespace, keeping double-quoted runs together
// and stopping at a "//" comment. An unterminated quote runs to the end of
// the line.
func tokenize(line string) []string {
	var (
		tokens   []string
		token    strings.Builder
		inQuotes bool
	)

	flush := func() {
		tokens = append(tokens, token.String())
		token.Reset()
	}

	for i, r := range line {
		switch {
		case !inQuotes && strings.HasPrefix(line[i:], "//"):
			if token.Len() > 0 {
				flush()
			}
			return tokens
		case r == '"':
			if inQuotes {
				flush()
			}
			inQuotes = !inQuotes
		case unicode.IsSpace(r) && !inQuotes:
			if token.Len() > 0 {
				flush()
			}
		default:
			token.WriteRune(r)
		}
	}

	if token.Len() > 0 {
		flush()
	}
	return tokens
}
