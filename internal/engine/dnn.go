package engine

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DNNBackend runs a model through OpenCV's dnn module.
type DNNBackend struct {
	net     gocv.Net
	input   string
	outputs []string
}

// NewDNNBackend loads cfg.Path with gocv.ReadNet. When cfg.Outputs is empty
// the network's unconnected output layers are used.
func NewDNNBackend(cfg ModelConfig) (*DNNBackend, error) {
	net := gocv.ReadNet(cfg.Path, "")
	if net.Empty() {
		return nil, errors.Errorf("engine: failed to load model %s", cfg.Path)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "engine: set backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "engine: set target")
	}

	outputs := cfg.outputNames()
	if len(outputs) == 0 {
		outputs = net.GetUnconnectedOutLayerNames()
	}

	return &DNNBackend{net: net, input: cfg.InputName, outputs: outputs}, nil
}

// Run implements Backend.
func (b *DNNBackend) Run(blob gocv.Mat) ([]Tensor, error) {
	if blob.Empty() {
		return nil, errors.New("engine: empty input blob")
	}
	b.net.SetInput(blob, b.input)

	mats := b.net.ForwardLayers(b.outputs)
	defer func() {
		for i := range mats {
			mats[i].Close()
		}
	}()
	if len(mats) != len(b.outputs) {
		return nil, errors.Errorf("engine: got %d outputs, want %d", len(mats), len(b.outputs))
	}

	tensors := make([]Tensor, len(mats))
	for i, m := range mats {
		data, err := m.DataPtrFloat32()
		if err != nil {
			return nil, errors.Wrapf(err, "engine: read output %s", b.outputs[i])
		}
		tensors[i] = Tensor{
			Name:  b.outputs[i],
			Shape: m.Size(),
			Data:  append([]float32(nil), data...),
		}
	}
	return tensors, nil
}

// Close implements Backend.
func (b *DNNBackend) Close() error {
	return b.net.Close()
}
