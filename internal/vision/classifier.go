package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/oshokin/smart-lock/internal/domain/presence"
	"github.com/oshokin/smart-lock/internal/vision/labels"
)

// ErrUnknownClassIndex means the model and the labels file disagree.
var ErrUnknownClassIndex = labels.ErrUnknownClassIndex

// errEmptyModel is returned when OpenCV cannot load the model.
var errEmptyModel = errors.New("model could not be loaded")

// pixelScale normalizes 8-bit channels to [0, 1].
const pixelScale = 1.0 / 255.0

// Classifier runs the model on decoded JPEG images. Inference is serialized.
type Classifier struct {
	// net is the loaded network.
	net gocv.Net
	// labels names the model outputs.
	labels labels.Labels
	// inputSize is the square edge of the model input.
	inputSize int
	// mu serializes inference; a Net is not safe for concurrent use.
	mu sync.Mutex
}

// Open loads the model, runs one probe inference to learn its number of
// classes and checks that every class has a label.
func Open(modelPath string, names labels.Labels, inputSize int) (*Classifier, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", errEmptyModel, modelPath)
	}

	c := &Classifier{
		net:       net,
		labels:    names,
		inputSize: inputSize,
	}

	probe := gocv.NewMatWithSize(inputSize, inputSize, gocv.MatTypeCV8UC3)
	defer probe.Close()

	scores, err := c.forward(probe)
	if err != nil {
		_ = net.Close()
		return nil, fmt.Errorf("probe model: %w", err)
	}

	if missing, ok := names.Covers(len(scores)); !ok {
		_ = net.Close()
		return nil, fmt.Errorf("%w: model has %d classes, no label for %d", ErrUnknownClassIndex, len(scores), missing)
	}

	return c, nil
}

// Classify returns the top label and its raw confidence. Errors wrap
// presence.ErrClassifierFailed.
func (c *Classifier) Classify(_ context.Context, jpeg []byte) (presence.Classification, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return presence.Classification{}, fmt.Errorf("%w: decode image: %w", presence.ErrClassifierFailed, err)
	}
	defer img.Close()

	if img.Empty() {
		return presence.Classification{}, fmt.Errorf("%w: empty image", presence.ErrClassifierFailed)
	}

	scores, err := c.forward(img)
	if err != nil {
		return presence.Classification{}, fmt.Errorf("%w: %w", presence.ErrClassifierFailed, err)
	}

	result, err := c.labels.Best(scores)
	if err != nil {
		return presence.Classification{}, fmt.Errorf("%w: %w", presence.ErrClassifierFailed, err)
	}

	return result, nil
}

// Close releases the network.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.net.Close()
}

// forward resizes img to the model input, swaps BGR to RGB, scales to [0, 1]
// and returns the output scores.
func (c *Classifier) forward(img gocv.Mat) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	blob := gocv.BlobFromImage(img, pixelScale, image.Pt(c.inputSize, c.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	c.net.SetInput(blob, "")

	output := c.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, errEmptyModel
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read scores: %w", err)
	}

	return append([]float32(nil), data...), nil
}
