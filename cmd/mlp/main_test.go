package main

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/ahmedtd/mlp/toolbox"
	"github.com/google/go-cmp/cmp"
)

func TestParseLayers(t *testing.T) {
	got, err := parseLayers("784, 128,10")
	if err != nil {
		t.Fatalf("parseLayers: %v", err)
	}
	if diff := cmp.Diff(got, []int{784, 128, 10}); diff != "" {
		t.Errorf("Wrong layers; diff (-got +want)\n%s", diff)
	}

	if _, err := parseLayers("784,,10"); err == nil {
		t.Errorf("parseLayers accepted an empty layer size")
	}
}

func TestSaveLoadModel(t *testing.T) {
	net, err := toolbox.New([]int{4, 3, 2}, toolbox.ReLU, 0.25, rand.New(rand.NewSource(12345)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.safetensors")
	if err := saveModel(path, net); err != nil {
		t.Fatalf("saveModel: %v", err)
	}
	loaded, err := loadModel(path)
	if err != nil {
		t.Fatalf("loadModel: %v", err)
	}

	input := []float32{0.1, 0.2, 0.3, 0.4}
	want, err := net.FeedForward(input)
	if err != nil {
		t.Fatalf("FeedForward: %v", err)
	}
	got, err := loaded.FeedForward(input)
	if err != nil {
		t.Fatalf("FeedForward: %v", err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("loaded model disagrees; diff (-got +want)\n%s", diff)
	}
}

func TestShouldReport(t *testing.T) {
	if !shouldReport(7, 30) {
		t.Errorf("short runs should report every epoch")
	}
	if shouldReport(150, 10000) || !shouldReport(200, 10000) {
		t.Errorf("long runs should report every hundredth epoch")
	}
}
