package analytics

import (
	"context"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	KeyStepType = tag.MustNewKey("step_type")
	KeyOutcome  = tag.MustNewKey("outcome")
)

var (
	InboundMessages = stats.Int64("flowengine/inbound_messages", "Inbound messages processed", stats.UnitDimensionless)
	StepsExecuted   = stats.Int64("flowengine/steps_executed", "Flow steps executed", stats.UnitDimensionless)
	StoreFailOpen   = stats.Int64("flowengine/session_store_fail_open", "Session reads that failed open to no session", stats.UnitDimensionless)
	SessionsEnded   = stats.Int64("flowengine/sessions_ended", "Sessions deleted", stats.UnitDimensionless)
)

var Views = []*view.View{
	{
		Name:        "flowengine/inbound_messages_count",
		Measure:     InboundMessages,
		Description: "Inbound messages by outcome",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyOutcome},
	},
	{
		Name:        "flowengine/steps_executed_count",
		Measure:     StepsExecuted,
		Description: "Steps executed by type and outcome",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyStepType, KeyOutcome},
	},
	{
		Name:        "flowengine/session_store_fail_open_count",
		Measure:     StoreFailOpen,
		Description: "Session store reads that failed open",
		Aggregation: view.Count(),
	},
	{
		Name:        "flowengine/sessions_ended_count",
		Measure:     SessionsEnded,
		Description: "Sessions deleted by reason",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyOutcome},
	},
}

func RegisterViews() error {
	return view.Register(Views...)
}

func UnregisterViews() {
	view.Unregister(Views...)
}

func RecordInbound(ctx context.Context, outcome string) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyOutcome, outcome)}, InboundMessages.M(1))
}

func RecordStep(ctx context.Context, stepType string, outcome string) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{
		tag.Upsert(KeyStepType, stepType),
		tag.Upsert(KeyOutcome, outcome),
	}, StepsExecuted.M(1))
}

func RecordStoreFailOpen(ctx context.Context) {
	stats.Record(ctx, StoreFailOpen.M(1))
}

func RecordSessionEnded(ctx context.Context, reason string) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyOutcome, reason)}, SessionsEnded.M(1))
}
