// Package labels parses the class labels file of the vision model. Each line
// is "<index> <name>", for example "0 Alice"; blank lines are ignored.
package labels

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/oshokin/smart-lock/internal/domain/presence"
)

var (
	// ErrMalformedLine is returned for a line without an index and a name.
	ErrMalformedLine = errors.New("malformed label line")
	// ErrDuplicateIndex is returned when an index appears twice.
	ErrDuplicateIndex = errors.New("duplicate label index")
)

// Labels maps class indices to display names.
type Labels map[int]string

// Load reads the labels file at path.
func Load(path string) (Labels, error) {
	file, err := os.Open(path) //nolint:gosec // Path comes from the operator's settings.
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	return Parse(file)
}

// Parse reads labels from r.
func Parse(r io.Reader) (Labels, error) {
	result := make(Labels)
	scanner := bufio.NewScanner(r)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rawIndex, name, found := strings.Cut(line, " ")
		name = strings.TrimSpace(name)

		if !found || name == "" {
			return nil, fmt.Errorf("line %d: %w: %q", lineNumber, ErrMalformedLine, line)
		}

		index, err := strconv.Atoi(rawIndex)
		if err != nil || index < 0 {
			return nil, fmt.Errorf("line %d: %w: bad index %q", lineNumber, ErrMalformedLine, rawIndex)
		}

		if _, exists := result[index]; exists {
			return nil, fmt.Errorf("line %d: %w: %d", lineNumber, ErrDuplicateIndex, index)
		}

		result[index] = name
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}

	return result, nil
}

// Name returns the label of index.
func (l Labels) Name(index int) (string, bool) {
	name, ok := l[index]

	return name, ok
}

// Covers reports the first index in [0, classes) without a label.
func (l Labels) Covers(classes int) (int, bool) {
	for i := range classes {
		if _, ok := l[i]; !ok {
			return i, false
		}
	}

	return 0, true
}

// ErrUnknownClassIndex is returned when the model picks a class the labels file does not name.
var ErrUnknownClassIndex = errors.New("class index missing from labels")

// errNoScores is returned for an empty score vector.
var errNoScores = errors.New("no scores")

// Best returns the label and score of the highest scoring class.
func (l Labels) Best(scores []float32) (presence.Classification, error) {
	if len(scores) == 0 {
		return presence.Classification{}, errNoScores
	}

	best := 0

	for i, score := range scores {
		if score > scores[best] {
			best = i
		}
	}

	name, ok := l.Name(best)
	if !ok {
		return presence.Classification{}, fmt.Errorf("%w: %d", ErrUnknownClassIndex, best)
	}

	return presence.Classification{
		Label:      name,
		Confidence: float64(scores[best]),
	}, nil
}
