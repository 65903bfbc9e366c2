package health

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"tempinbox/backend/internal/storage/memory"
)

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  *memory.Store
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store *memory.Store, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	hc.addChecks()

	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// 存储可用性检查
	hc.health.AddLivenessCheck("store", func() error {
		return hc.store.Health()
	})

	// 协程数量检查，泄漏时快速暴露
	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(10000))

	hc.health.AddReadinessCheck("store", func() error {
		return hc.store.Health()
	})
}

// Handler 返回健康检查处理器
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活探针处理函数
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪探针处理函数
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// CheckHealth 执行健康检查
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["store"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["store"] = "OK"
	}

	results["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())
	results["timestamp"] = time.Now().Format(time.RFC3339)

	return results
}
