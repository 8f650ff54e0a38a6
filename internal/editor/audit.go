package editor

import (
	"context"

	"github.com/conneroisu/storefront/internal/accessibility"
	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// Audit checks the latest preview for accessibility problems, rendering once
// if nothing has been rendered yet.
func (s *Session) Audit(ctx context.Context) (accessibility.Report, error) {
	frame, err := s.Frame()
	if frame.Key == 0 {
		frame, err = s.Render(ctx)
	}
	if frame.Key == 0 {
		if err == nil {
			err = apperrors.NewRenderError(apperrors.ErrCodeRenderFailed, "no preview rendered yet", nil)
		}
		return accessibility.Report{}, err
	}

	report, err := accessibility.Audit(frame.HTML)
	if err != nil {
		return accessibility.Report{}, apperrors.NewRenderError(apperrors.ErrCodeRenderFailed, "cannot audit preview", err)
	}

	s.logger.Debug(ctx, "Audited preview", "key", frame.Key, "violations", len(report.Violations))
	return report, nil
}
