package importer

import (
	"fmt"

	"github.com/loom-ml/loom/onnx"
)

// ModelInfo is the top-level accounting for one model under import.
type ModelInfo struct {
	Config *Config
	Proto  *onnx.ModelProto

	// MainGraph indexes the model's main graph.
	MainGraph *GraphInfo
}

// NewModelInfo indexes a model. The model must contain a main graph.
func NewModelInfo(proto *onnx.ModelProto, config *Config) (*ModelInfo, error) {
	if proto.Graph == nil {
		return nil, fmt.Errorf("model must contain a main graph")
	}
	mi := &ModelInfo{Config: config.normalized(), Proto: proto}
	gi, err := NewGraphInfo(mi, proto.Graph, false)
	if err != nil {
		return nil, err
	}
	mi.MainGraph = gi
	return mi, nil
}

// OpsetVersion returns the declared opset version for a domain.
func (mi *ModelInfo) OpsetVersion(domain string) (int64, bool) {
	for _, opset := range mi.Proto.OpsetImport {
		if opset.Domain == domain {
			return opset.Version, true
		}
	}
	return 0, false
}
