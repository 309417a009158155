package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/catalog-server/internal/service"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "reconcile",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/reconcile",
		Summary:     "Reconcile derived data",
		Description: "Recomputes book counts, review counts, average ratings and embedded snapshots from live data",
		Tags:        []string{"Admin"},
		Security:    bearer,
	}, s.handleReconcile)
}

// ReconcileInput contains parameters for a reconcile run.
type ReconcileInput struct {
	Authorization string `header:"Authorization"`
	Reindex       bool   `query:"reindex" doc:"Also rebuild the search index"`
}

// ReconcileResponse reports what a reconcile run corrected.
type ReconcileResponse struct {
	service.ReconcileReport
	Reindexed *int `json:"reindexed,omitempty" doc:"Books written to the rebuilt search index"`
}

// ReconcileOutput wraps the reconcile response for Huma.
type ReconcileOutput struct {
	Body ReconcileResponse
}

func (s *Server) handleReconcile(ctx context.Context, input *ReconcileInput) (*ReconcileOutput, error) {
	userID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "reconcile requested", "user_id", userID, "reindex", input.Reindex)

	report, err := s.services.Reconcile.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}

	out := &ReconcileOutput{Body: ReconcileResponse{ReconcileReport: *report}}
	if input.Reindex {
		n, err := s.services.Books.Reindex(ctx)
		if err != nil {
			return nil, err
		}
		out.Body.Reindexed = &n
	}
	return out, nil
}
