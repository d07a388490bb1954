package analytics

import "go.uber.org/zap"

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const NOP_DATA_COLLECTOR DataCollectorType = "NOP_DATA_COLLECTOR"

// NodeRecord identifies one node execution of a trace.
type NodeRecord struct {
	DefinitionId string
	TraceId      string
	ContextId    string
	NodeId       string
}

func (r NodeRecord) fields() []zap.Field {
	return []zap.Field{
		zap.String("definitionId", r.DefinitionId),
		zap.String("traceId", r.TraceId),
		zap.String("contextId", r.ContextId),
		zap.String("nodeId", r.NodeId),
	}
}

type FlowDataCollector interface {
	RecordNodeSuccess(r NodeRecord, data map[string]any)
	RecordNodeFailure(r NodeRecord, reason string)
	Close() error
}

func NewDataCollector(config DataCollectorConfig) (FlowDataCollector, error) {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		return NewLogFileDataCollector(config.FileName)
	}
	return nopCollector{}, nil
}

type nopCollector struct{}

func (nopCollector) RecordNodeSuccess(NodeRecord, map[string]any) {}
func (nopCollector) RecordNodeFailure(NodeRecord, string)         {}
func (nopCollector) Close() error                                 { return nil }
