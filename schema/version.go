package schema

import "github.com/loom-ml/loom/onnx"

// Pairs of (default-domain opset version, minimum interchange-format IR
// version able to express it), per the ONNX release table. Ordered ascending.
var irVersionTable = []struct {
	opset     int64
	irVersion int64
}{
	{8, 3},
	{9, 4},
	{10, 5},
	{11, 6},
	{14, 7},
	{18, 8},
	{20, 9},
	{22, 10},
	{23, 11},
}

// MinIRVersion returns the minimum IR version supporting the given opset
// imports. Only the default domain constrains the IR version; custom domains
// fall back to the floor of the table.
func MinIRVersion(opsets []onnx.OperatorSetID) int64 {
	var defaultOpset int64
	for _, opset := range opsets {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			defaultOpset = opset.Version
			break
		}
	}
	if defaultOpset == 0 {
		return irVersionTable[0].irVersion
	}
	for _, entry := range irVersionTable {
		if defaultOpset <= entry.opset {
			return entry.irVersion
		}
	}
	return irVersionTable[len(irVersionTable)-1].irVersion
}
