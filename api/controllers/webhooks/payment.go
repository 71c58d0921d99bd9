package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/mathias-bellec/MkulimaLink-sub002/api/responses"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
)

type PaymentCallbackService interface {
	Process(ctx context.Context, body []byte) error
}

// PaymentCallback receives mobile money settlement callbacks. Verification,
// dedupe and state transitions all happen in the service; duplicates and
// already-settled orders come back as nil errors so the provider sees 200
// and stops retrying.
func PaymentCallback(svc PaymentCallbackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "callback service unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := svc.Process(ctx, body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
