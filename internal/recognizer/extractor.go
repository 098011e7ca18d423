package recognizer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"
	"path/filepath"
	"sort"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facegate/internal/models"
)

// Face is one detected face with its descriptor embedding, before the
// recognizer assigns a face ID.
type Face struct {
	Embedding   []float32
	BoundingBox models.BoundingBox
	Confidence  float32
}

// Extractor turns raw image bytes into face embeddings. Implementations are
// swapped out in tests.
type Extractor interface {
	// Extract returns every detected face sorted by confidence, best first.
	// An image with no face yields an empty slice and no error.
	Extract(image []byte) ([]Face, error)
	Close()
}

// SerializeExtractor wraps an extractor whose implementation reuses shared
// input/output buffers, so concurrent requests never interleave a run.
func SerializeExtractor(inner Extractor) Extractor {
	return &serializedExtractor{inner: inner}
}

type serializedExtractor struct {
	mu    sync.Mutex
	inner Extractor
}

func (s *serializedExtractor) Extract(image []byte) ([]Face, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Extract(image)
}

func (s *serializedExtractor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Close()
}

const (
	detInputSize  = 640
	embInputSize  = 112
	embeddingDim  = 512
	nmsIOU        = 0.4
	detModelFile  = "det_10g.onnx"
	embModelFile  = "w600k_r50.onnx"
	anchorsPerLoc = 2
)

// RetinaFace det_10g anchor strides and the matching raw output tensor names
// (scores then bboxes, per stride). Landmark outputs are not requested.
var (
	detStrides    = []int{8, 16, 32}
	detScoreNames = []string{"448", "471", "494"}
	detBBoxNames  = []string{"451", "474", "497"}
	detAnchorRows = []int64{12800, 3200, 800}
	detInputName  = "input.1"
	embInputName  = "input.1"
	embOutputName = "683"
)

// ONNXExtractor runs RetinaFace detection and ArcFace embedding through
// shared onnxruntime sessions and tensors. Not safe for concurrent use; the
// gateway wraps it with SerializeExtractor.
type ONNXExtractor struct {
	detSession *ort.AdvancedSession
	detInput   *ort.Tensor[float32]
	detOutputs []*ort.Tensor[float32]

	embSession *ort.AdvancedSession
	embInput   *ort.Tensor[float32]
	embOutput  *ort.Tensor[float32]

	threshold float32
}

// NewONNXExtractor loads the detection and embedding models from modelsDir.
// ort.InitializeEnvironment must have been called by the binary.
func NewONNXExtractor(modelsDir string, detectionThreshold float64) (*ONNXExtractor, error) {
	e := &ONNXExtractor{threshold: float32(detectionThreshold)}

	detInput, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, detInputSize, detInputSize))
	if err != nil {
		return nil, fmt.Errorf("create detector input tensor: %w", err)
	}
	e.detInput = detInput

	outputNames := make([]string, 0, 6)
	outputValues := make([]ort.Value, 0, 6)
	for i := range detStrides {
		scores, err := ort.NewEmptyTensor[float32](ort.NewShape(detAnchorRows[i], 1))
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("create score tensor: %w", err)
		}
		bboxes, err := ort.NewEmptyTensor[float32](ort.NewShape(detAnchorRows[i], 4))
		if err != nil {
			scores.Destroy()
			e.Close()
			return nil, fmt.Errorf("create bbox tensor: %w", err)
		}
		e.detOutputs = append(e.detOutputs, scores, bboxes)
		outputNames = append(outputNames, detScoreNames[i], detBBoxNames[i])
		outputValues = append(outputValues, scores, bboxes)
	}

	detSession, err := ort.NewAdvancedSession(
		filepath.Join(modelsDir, detModelFile),
		[]string{detInputName}, outputNames,
		[]ort.Value{detInput}, outputValues, nil)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create detector session: %w", err)
	}
	e.detSession = detSession

	embInput, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, embInputSize, embInputSize))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create embedder input tensor: %w", err)
	}
	e.embInput = embInput

	embOutput, err := ort.NewEmptyTensor[float32](ort.NewShape(1, embeddingDim))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create embedder output tensor: %w", err)
	}
	e.embOutput = embOutput

	embSession, err := ort.NewAdvancedSession(
		filepath.Join(modelsDir, embModelFile),
		[]string{embInputName}, []string{embOutputName},
		[]ort.Value{embInput}, []ort.Value{embOutput}, nil)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}
	e.embSession = embSession

	return e, nil
}

// Extract decodes the image, detects faces, and embeds each face crop.
func (e *ONNXExtractor) Extract(imageData []byte) ([]Face, error) {
	img, err := decodeImage(imageData)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	copy(e.detInput.GetData(), toCHW(img, detInputSize, detInputSize, 127.5, 128.0))
	if err := e.detSession.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	dets := e.decodeDetections(origW, origH)
	dets = suppress(dets, nmsIOU)

	faces := make([]Face, 0, len(dets))
	for _, det := range dets {
		crop := cropFace(img, det.BoundingBox)
		if crop == nil {
			continue
		}

		copy(e.embInput.GetData(), toCHW(crop, embInputSize, embInputSize, 127.5, 127.5))
		if err := e.embSession.Run(); err != nil {
			return nil, fmt.Errorf("run embedding: %w", err)
		}

		embedding := make([]float32, embeddingDim)
		copy(embedding, e.embOutput.GetData())
		l2normalize(embedding)

		det.Embedding = embedding
		faces = append(faces, det)
	}

	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Confidence > faces[j].Confidence
	})
	return faces, nil
}

func (e *ONNXExtractor) Close() {
	if e.detSession != nil {
		e.detSession.Destroy()
	}
	if e.embSession != nil {
		e.embSession.Destroy()
	}
	if e.detInput != nil {
		e.detInput.Destroy()
	}
	if e.embInput != nil {
		e.embInput.Destroy()
	}
	if e.embOutput != nil {
		e.embOutput.Destroy()
	}
	for _, t := range e.detOutputs {
		if t != nil {
			t.Destroy()
		}
	}
}

// decodeDetections walks the anchor grid at each stride and keeps boxes above
// the detection threshold, scaled back to original image coordinates.
func (e *ONNXExtractor) decodeDetections(origW, origH int) []Face {
	var faces []Face

	scaleW := float32(origW) / float32(detInputSize)
	scaleH := float32(origH) / float32(detInputSize)

	for si, stride := range detStrides {
		scores := e.detOutputs[si*2].GetData()
		bboxes := e.detOutputs[si*2+1].GetData()

		fm := detInputSize / stride
		st := float32(stride)

		idx := 0
		for cy := 0; cy < fm; cy++ {
			for cx := 0; cx < fm; cx++ {
				for a := 0; a < anchorsPerLoc; a++ {
					score := scores[idx]
					if score >= e.threshold {
						anchorX := float32(cx) * st
						anchorY := float32(cy) * st

						faces = append(faces, Face{
							Confidence: score,
							BoundingBox: models.BoundingBox{
								X1: clamp((anchorX-bboxes[idx*4+0]*st)*scaleW, 0, float32(origW)),
								Y1: clamp((anchorY-bboxes[idx*4+1]*st)*scaleH, 0, float32(origH)),
								X2: clamp((anchorX+bboxes[idx*4+2]*st)*scaleW, 0, float32(origW)),
								Y2: clamp((anchorY+bboxes[idx*4+3]*st)*scaleH, 0, float32(origH)),
							},
						})
					}
					idx++
				}
			}
		}
	}

	return faces
}

func decodeImage(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	img, _, err = image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// toCHW resizes with nearest-neighbour and converts to normalized CHW floats:
// pixel = (pixel - mean) / std, same mean/std across channels.
func toCHW(img image.Image, targetW, targetH int, mean, std float32) []float32 {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	data := make([]float32, 3*targetH*targetW)
	plane := targetH * targetW

	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			srcY := bounds.Min.Y + y*srcH/targetH
			r, g, b, _ := img.At(srcX, srcY).RGBA()

			idx := y*targetW + x
			data[idx] = (float32(r>>8) - mean) / std
			data[plane+idx] = (float32(g>>8) - mean) / std
			data[2*plane+idx] = (float32(b>>8) - mean) / std
		}
	}

	return data
}

// cropFace extracts the face region with 10% padding on each side.
func cropFace(img image.Image, box models.BoundingBox) image.Image {
	bounds := img.Bounds()

	w := box.X2 - box.X1
	h := box.Y2 - box.Y1
	if w <= 0 || h <= 0 {
		return nil
	}

	x1 := int(box.X1 - w*0.1)
	y1 := int(box.Y1 - h*0.1)
	x2 := int(box.X2 + w*0.1)
	y2 := int(box.Y2 + h*0.1)

	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}
	if x2-x1 <= 0 || y2-y1 <= 0 {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for cy := y1; cy < y2; cy++ {
		for cx := x1; cx < x2; cx++ {
			crop.Set(cx-x1, cy-y1, img.At(cx, cy))
		}
	}
	return crop
}

// suppress performs non-maximum suppression on detections sorted in place.
func suppress(faces []Face, iouThreshold float32) []Face {
	if len(faces) == 0 {
		return faces
	}

	sort.Slice(faces, func(i, j int) bool {
		return faces[i].Confidence > faces[j].Confidence
	})

	kept := faces[:0]
	removed := make([]bool, len(faces))
	for i := range faces {
		if removed[i] {
			continue
		}
		for j := i + 1; j < len(faces); j++ {
			if !removed[j] && iou(faces[i].BoundingBox, faces[j].BoundingBox) > iouThreshold {
				removed[j] = true
			}
		}
		kept = append(kept, faces[i])
	}
	return kept
}

func iou(a, b models.BoundingBox) float32 {
	x1 := maxf(a.X1, b.X1)
	y1 := maxf(a.Y1, b.Y1)
	x2 := minf(a.X2, b.X2)
	y2 := minf(a.Y2, b.Y2)

	inter := maxf(0, x2-x1) * maxf(0, y2-y1)
	union := (a.X2-a.X1)*(a.Y2-a.Y1) + (b.X2-b.X1)*(b.Y2-b.Y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
