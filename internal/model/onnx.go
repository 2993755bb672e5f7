package model

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"
)

// ONNX tensor names produced by skl2onnx with zipmap disabled.
const (
	onnxInputName       = "float_input"
	onnxLabelName       = "label"
	onnxProbabilityName = "probabilities"
)

var (
	onnxInitOnce sync.Once
	onnxInitErr  error
)

// SetONNXLibraryPath points onnxruntime at its shared library. Call before the
// first LoadONNX; an empty path keeps the platform default.
func SetONNXLibraryPath(path string) {
	if path != "" {
		onnxruntime.SetSharedLibraryPath(path)
	}
}

// ONNXClassifier runs a binary classifier exported to ONNX.
type ONNXClassifier struct {
	mu       sync.Mutex // sessions are not safe for concurrent Run
	session  *onnxruntime.DynamicAdvancedSession
	features []string
}

// LoadONNX opens an ONNX session for the model at path. The artifact does not
// carry column names, so the caller supplies them.
func LoadONNX(path string, featureNames []string) (*ONNXClassifier, error) {
	if len(featureNames) == 0 {
		return nil, errors.New("onnx model needs feature names")
	}
	onnxInitOnce.Do(func() {
		onnxInitErr = onnxruntime.InitializeEnvironment()
	})
	if onnxInitErr != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", onnxInitErr)
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	session, err := onnxruntime.NewDynamicAdvancedSession(path,
		[]string{onnxInputName}, []string{onnxLabelName, onnxProbabilityName}, options)
	if err != nil {
		return nil, fmt.Errorf("load onnx model: %w", err)
	}

	return &ONNXClassifier{session: session, features: slices.Clone(featureNames)}, nil
}

// FeatureNames implements Classifier.
func (c *ONNXClassifier) FeatureNames() []string { return slices.Clone(c.features) }

// FeatureImportances implements Classifier. ONNX graphs do not keep them.
func (c *ONNXClassifier) FeatureImportances() []float64 { return nil }

// Predict implements Classifier.
func (c *ONNXClassifier) Predict(x []float64) (int, error) {
	label, _, err := c.run(x)
	return label, err
}

// PredictProbability implements Classifier.
func (c *ONNXClassifier) PredictProbability(x []float64) (float64, error) {
	_, p, err := c.run(x)
	return p, err
}

func (c *ONNXClassifier) run(x []float64) (int, float64, error) {
	if err := checkWidth(x, len(c.features)); err != nil {
		return 0, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0, 0, errors.New("onnx session is closed")
	}

	input := make([]float32, len(x))
	for i, v := range x {
		input[i] = float32(v)
	}
	inputTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1, int64(len(input))), input)
	if err != nil {
		return 0, 0, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	labels := make([]int64, 1)
	labelTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1), labels)
	if err != nil {
		return 0, 0, fmt.Errorf("create label tensor: %w", err)
	}
	defer labelTensor.Destroy()

	probs := make([]float32, 2)
	probTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1, 2), probs)
	if err != nil {
		return 0, 0, fmt.Errorf("create probability tensor: %w", err)
	}
	defer probTensor.Destroy()

	if err := c.session.Run([]onnxruntime.Value{inputTensor}, []onnxruntime.Value{labelTensor, probTensor}); err != nil {
		return 0, 0, fmt.Errorf("onnx inference: %w", err)
	}

	out := labelTensor.GetData()
	label := int(out[0])
	if label != 0 && label != 1 {
		return 0, 0, fmt.Errorf("onnx model returned class %d", label)
	}
	return label, float64(probTensor.GetData()[1]), nil
}

// Close releases the ONNX session.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.session = nil
	return err
}
