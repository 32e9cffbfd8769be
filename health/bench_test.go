package health

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonwraymond/callguard/resilience"
)

func benchSource(n int) staticSource {
	src := make(staticSource, n)
	for i := range src {
		src[i] = commandMetrics(fmt.Sprintf("call%d", i), resilience.StateClosed, resilience.Snapshot{Success: 90, Failure: 10})
	}
	return src
}

func BenchmarkCommandChecker_Check(b *testing.B) {
	checker := NewCommandChecker("commands", benchSource(20))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = checker.Check(ctx)
	}
}

func BenchmarkAggregator_CheckAll(b *testing.B) {
	for _, sequential := range []bool{false, true} {
		b.Run(fmt.Sprintf("sequential=%v", sequential), func(b *testing.B) {
			agg := NewAggregator(AggregatorConfig{Sequential: sequential})
			for i := 0; i < 5; i++ {
				name := fmt.Sprintf("check%d", i)
				agg.Register(name, constChecker(name, Healthy("ok")))
			}
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = agg.CheckAll(ctx)
			}
		})
	}
}

func BenchmarkCommandsHandler(b *testing.B) {
	handler := CommandsHandler(benchSource(20))
	req := httptest.NewRequest(http.MethodGet, "/health/commands", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler(httptest.NewRecorder(), req)
	}
}
