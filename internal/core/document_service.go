package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xferlogic/gateway/internal/render"
)

// DocumentService renders documents in memory and records one usage entry per
// successful render. Documents carry no token count or cost.
type DocumentService struct {
	usage *UsageRecorder
	log   *logrus.Logger
}

func NewDocumentService(usage *UsageRecorder, log *logrus.Logger) *DocumentService {
	return &DocumentService{usage: usage, log: log}
}

func (s *DocumentService) RenderPDF(ctx context.Context, userID int64, text string) ([]byte, error) {
	return s.render(ctx, userID, EndpointPDF, func() ([]byte, error) { return render.PDF(text) })
}

func (s *DocumentService) RenderDOCX(ctx context.Context, userID int64, text string) ([]byte, error) {
	return s.render(ctx, userID, EndpointDOCX, func() ([]byte, error) { return render.DOCX(text) })
}

func (s *DocumentService) RenderXLSX(ctx context.Context, userID int64, rows [][]any) ([]byte, error) {
	return s.render(ctx, userID, EndpointExcel, func() ([]byte, error) { return render.XLSX(rows) })
}

func (s *DocumentService) RenderSVG(ctx context.Context, userID int64, markup string) ([]byte, error) {
	return s.render(ctx, userID, EndpointSVG, func() ([]byte, error) { return render.SVG(markup), nil })
}

func (s *DocumentService) render(ctx context.Context, userID int64, endpoint string, fn func() ([]byte, error)) ([]byte, error) {
	out, err := fn()
	if errors.Is(err, render.ErrSheetBounds) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"endpoint": endpoint,
		}).Error("Document render failed")
		return nil, err
	}

	s.usage.recordOrLog(ctx, userID, endpoint, 0, 0)
	return out, nil
}
