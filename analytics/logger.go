package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogFileDataCollector struct {
	fileName string
	logger   *zap.Logger
}

var _ FlowDataCollector = new(LogFileDataCollector)

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	core := zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel)
	return &LogFileDataCollector{
		fileName: fileName,
		logger:   zap.New(core),
	}, nil
}

func (lc *LogFileDataCollector) RecordStepSuccess(rec StepRecord) {
	lc.logger.Info("step_success", stepFields(rec)...)
}

func (lc *LogFileDataCollector) RecordStepFailure(rec StepRecord, reason string) {
	lc.logger.Info("step_failure", append(stepFields(rec), zap.String("reason", reason))...)
}

func (lc *LogFileDataCollector) RecordFlowFinished(ownerId string, conversationId string, flowId string, reason string) {
	lc.logger.Info("flow_finished",
		zap.String("ownerId", ownerId),
		zap.String("conversationId", conversationId),
		zap.String("flowId", flowId),
		zap.String("reason", reason))
}

func (lc *LogFileDataCollector) Sync() error {
	return lc.logger.Sync()
}

func stepFields(rec StepRecord) []zap.Field {
	return []zap.Field{
		zap.String("ownerId", rec.OwnerId),
		zap.String("conversationId", rec.ConversationId),
		zap.String("flowId", rec.FlowId),
		zap.String("stepId", rec.StepId),
		zap.String("stepType", rec.StepType),
	}
}
