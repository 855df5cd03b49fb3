package vision

import (
	"image"
	"math"
	"sort"
	"strconv"

	"golang.org/x/image/draw"
)

// ImageNet channel statistics used by the MobileNet family.
var (
	imageNetMean = [3]float32{0.485, 0.456, 0.406}
	imageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// preprocess scales img to width x height and returns a normalised NCHW
// tensor with a batch of one.
func preprocess(img image.Image, width, height int) []float32 {
	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := width * height
	out := make([]float32, 3*plane)
	for i := 0; i < plane; i++ {
		p := scaled.Pix[i*4 : i*4+3]
		for c := 0; c < 3; c++ {
			v := float32(p[c]) / 255
			out[c*plane+i] = (v - imageNetMean[c]) / imageNetStd[c]
		}
	}
	return out
}

// inputSize reads the spatial edges of an NCHW input shape. Dynamic (<= 0)
// dimensions take the configured edge.
func inputSize(dims []int64, fallback int) (width, height int) {
	height, width = fallback, fallback
	if len(dims) != 4 {
		return width, height
	}
	if dims[2] > 0 {
		height = int(dims[2])
	}
	if dims[3] > 0 {
		width = int(dims[3])
	}
	return width, height
}

// softmax converts logits to probabilities. Scores that already form a
// distribution are returned unchanged.
func softmax(scores []float32) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	if isDistribution(scores) {
		for i, s := range scores {
			out[i] = float64(s)
		}
		return out
	}

	maxScore := float64(scores[0])
	for _, s := range scores[1:] {
		maxScore = math.Max(maxScore, float64(s))
	}

	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(float64(s) - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func isDistribution(scores []float32) bool {
	var sum float64
	for _, s := range scores {
		if s < 0 || s > 1 {
			return false
		}
		sum += float64(s)
	}
	return math.Abs(sum-1) < 1e-3
}

// topK pairs the k most probable classes with their labels. Classes beyond
// the label list are named by index.
func topK(probs []float64, labels []string, k int) []Result {
	if k <= 0 || k > len(probs) {
		k = len(probs)
	}

	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return probs[idx[a]] > probs[idx[b]]
	})

	results := make([]Result, k)
	for i := 0; i < k; i++ {
		results[i] = Result{
			Label:       labelFor(labels, idx[i]),
			Probability: probs[idx[i]],
		}
	}
	return results
}

func labelFor(labels []string, i int) string {
	if i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return "class " + strconv.Itoa(i)
}
