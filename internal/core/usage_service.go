package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xferlogic/gateway/internal/store"
)

const (
	EndpointText  = "text"
	EndpointImage = "image"
	EndpointPDF   = "pdf"
	EndpointDOCX  = "docx"
	EndpointExcel = "excel"
	EndpointSVG   = "svg"

	asyncUsageWriteTimeout = 5 * time.Second
)

type UsageStore interface {
	CreateUsageRecord(ctx context.Context, rec *store.UsageRecord) error
}

// UsageRecorder appends one usage record per billable call. In async mode the
// write happens on its own goroutine and outlives the request context.
type UsageRecorder struct {
	store UsageStore
	async bool
	log   *logrus.Logger
	now   func() time.Time
	wg    sync.WaitGroup
}

func NewUsageRecorder(s UsageStore, async bool, log *logrus.Logger) *UsageRecorder {
	return &UsageRecorder{
		store: s,
		async: async,
		log:   log,
		now:   time.Now,
	}
}

// Record persists the record inline (sync) or schedules it (async). In async
// mode it always returns nil; failures are logged and the record dropped.
func (r *UsageRecorder) Record(ctx context.Context, userID int64, endpoint string, tokenCount int, cost float64) error {
	rec := &store.UsageRecord{
		UserID:        userID,
		Endpoint:      endpoint,
		TokenCount:    tokenCount,
		EstimatedCost: cost,
		CreatedAt:     r.now().UTC(),
	}

	if !r.async {
		if err := r.store.CreateUsageRecord(ctx, rec); err != nil {
			return fmt.Errorf("failed to record usage: %w", err)
		}
		return nil
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), asyncUsageWriteTimeout)
		defer cancel()
		if err := r.store.CreateUsageRecord(writeCtx, rec); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"user_id":  userID,
				"endpoint": endpoint,
			}).Warn("Dropping usage record")
		}
	}()
	return nil
}

// Wait blocks until all scheduled async writes have finished.
func (r *UsageRecorder) Wait() {
	r.wg.Wait()
}

// recordOrLog is what services call after a successful billable operation:
// an accounting failure is logged and never reaches the caller.
func (r *UsageRecorder) recordOrLog(ctx context.Context, userID int64, endpoint string, tokenCount int, cost float64) {
	if err := r.Record(ctx, userID, endpoint, tokenCount, cost); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"endpoint": endpoint,
		}).Warn("Usage record not persisted")
	}
}
