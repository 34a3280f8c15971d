package monitoring

import (
	"context"
	"errors"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
)

// healthProbeCamera is an id no camera is ever registered under.
const healthProbeCamera domain.CameraID = "__health__"

// AddStoreCheck adds a backend ping, such as RepositoryFactory.HealthCheck.
func (h *HealthChecker) AddStoreCheck(ping func(ctx context.Context) error, interval, timeout time.Duration) {
	h.AddCheck("store", ping, interval, timeout)
}

// AddRepositoryCheck reads a camera that does not exist. A not-found answer
// proves the read path works end to end.
func (h *HealthChecker) AddRepositoryCheck(cameras ports.CameraRepository, interval, timeout time.Duration) {
	h.AddCheck("repository", func(ctx context.Context) error {
		_, err := cameras.Get(ctx, healthProbeCamera)
		if err == nil || errors.Is(err, domain.ErrCameraNotFound) {
			return nil
		}
		return err
	}, interval, timeout)
}

// IsReady checks if the service is ready to accept traffic
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	status := h.CheckAll(ctx)
	return status.Status == "healthy"
}
