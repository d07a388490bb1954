package analytics

import (
	"context"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	KeyTarget = tag.MustNewKey("target")
	KeyKind   = tag.MustNewKey("kind")
	KeyResult = tag.MustNewKey("result")
)

var (
	MTransitions      = stats.Int64("waterflow/transitions", "Context status writes", stats.UnitDimensionless)
	MDeniedTransition = stats.Int64("waterflow/transitions_denied", "Status writes rejected by the transition table", stats.UnitDimensionless)
	MDispatchAttempts = stats.Int64("waterflow/dispatch_attempts", "Jober and callback attempts", stats.UnitDimensionless)
	MPoolRejections   = stats.Int64("waterflow/pool_rejections", "Tasks rejected by a saturated worker pool", stats.UnitDimensionless)
)

var (
	TransitionsView = &view.View{
		Name:        "waterflow/transitions",
		Measure:     MTransitions,
		Description: "Count of context status writes by target status",
		TagKeys:     []tag.Key{KeyTarget},
		Aggregation: view.Count(),
	}
	DeniedTransitionsView = &view.View{
		Name:        "waterflow/transitions_denied",
		Measure:     MDeniedTransition,
		Description: "Count of denied status writes by target status",
		TagKeys:     []tag.Key{KeyTarget},
		Aggregation: view.Count(),
	}
	DispatchAttemptsView = &view.View{
		Name:        "waterflow/dispatch_attempts",
		Measure:     MDispatchAttempts,
		Description: "Count of remote dispatch attempts by kind and result",
		TagKeys:     []tag.Key{KeyKind, KeyResult},
		Aggregation: view.Count(),
	}
	PoolRejectionsView = &view.View{
		Name:        "waterflow/pool_rejections",
		Measure:     MPoolRejections,
		Description: "Count of worker pool rejections",
		Aggregation: view.Count(),
	}
)

var Views = []*view.View{TransitionsView, DeniedTransitionsView, DispatchAttemptsView, PoolRejectionsView}

func RegisterViews() error {
	return view.Register(Views...)
}

func RecordTransition(ctx context.Context, target string, allowed bool) {
	m := MTransitions.M(1)
	if !allowed {
		m = MDeniedTransition.M(1)
	}
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyTarget, target)}, m)
}

func RecordDispatch(ctx context.Context, kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	_ = stats.RecordWithTags(ctx, []tag.Mutator{
		tag.Upsert(KeyKind, kind),
		tag.Upsert(KeyResult, result),
	}, MDispatchAttempts.M(1))
}

func RecordPoolRejection() {
	stats.Record(context.Background(), MPoolRejections.M(1))
}
