package vision

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"testing"
	"time"
)

const (
	testModelPath  = "../../models/mobilenetv2-12.onnx"
	testLabelsPath = "../../models/imagenet_classes.txt"
	testRuntimeLib = "../../models/libonnxruntime.so"
)

func skipIfNoModel(t *testing.T) {
	t.Helper()
	for _, p := range []string{testModelPath, testLabelsPath, testRuntimeLib} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			t.Skip("model files not found in models/")
		}
	}
}

func grayImage(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	return img
}

func TestLoadONNXCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Labels are missing, so the background load fails fast either way
	_, err := LoadONNX(ctx, ONNXConfig{LabelsPath: "missing.txt"})
	if err == nil {
		t.Fatal("Expected an error")
	}
}

func TestLoadONNXMissingLabels(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewONNXLoader(ONNXConfig{LabelsPath: "missing.txt"}).Load(ctx)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected a labels error, got %v", err)
	}
}

func TestONNXClassify(t *testing.T) {
	skipIfNoModel(t)

	model, err := LoadONNX(context.Background(), ONNXConfig{
		Name:       "mobilenet",
		ModelPath:  testModelPath,
		LabelsPath: testLabelsPath,
		RuntimeLib: testRuntimeLib,
		InputSize:  224,
		TopK:       3,
		Threads:    2,
	})
	if err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}
	defer model.Close()

	if model.Name() != "mobilenet" {
		t.Errorf("Expected name mobilenet, got %s", model.Name())
	}

	input := preprocess(grayImage(32), model.width, model.height)
	scores, err := model.infer(input)
	if err != nil {
		t.Fatalf("Inference failed: %v", err)
	}
	if int64(len(scores)) != model.classes {
		t.Errorf("Expected %d scores, got %d", model.classes, len(scores))
	}

	results := topK(softmax(scores), model.labels, model.topK)
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Probability > results[i-1].Probability {
			t.Errorf("Expected results sorted by probability, got %+v", results)
		}
	}

	if err := model.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := model.infer(input); err == nil {
		t.Error("Expected error after Close")
	}
}
