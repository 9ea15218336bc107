package analytics

import "sync"

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const NOOP_DATA_COLLECTOR DataCollectorType = ""
const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"

type StepRecord struct {
	OwnerId        string
	ConversationId string
	FlowId         string
	StepId         string
	StepType       string
}

type FlowDataCollector interface {
	RecordStepSuccess(rec StepRecord)
	RecordStepFailure(rec StepRecord, reason string)
	RecordFlowFinished(ownerId string, conversationId string, flowId string, reason string)
}

type noopCollector struct{}

func (noopCollector) RecordStepSuccess(StepRecord)                      {}
func (noopCollector) RecordStepFailure(StepRecord, string)              {}
func (noopCollector) RecordFlowFinished(string, string, string, string) {}

var (
	mu            sync.RWMutex
	flowCollector FlowDataCollector = noopCollector{}
)

func InitDataCollector(config DataCollectorConfig) error {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return err
		}
		SetCollector(c)
	default:
		SetCollector(noopCollector{})
	}
	return nil
}

func SetCollector(c FlowDataCollector) {
	mu.Lock()
	defer mu.Unlock()
	flowCollector = c
}

func collector() FlowDataCollector {
	mu.RLock()
	defer mu.RUnlock()
	return flowCollector
}

func RecordStepSuccess(rec StepRecord) {
	collector().RecordStepSuccess(rec)
}

func RecordStepFailure(rec StepRecord, reason string) {
	collector().RecordStepFailure(rec, reason)
}

func RecordFlowFinished(ownerId string, conversationId string, flowId string, reason string) {
	collector().RecordFlowFinished(ownerId, conversationId, flowId, reason)
}
