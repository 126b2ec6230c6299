package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/larderhq/larder/internal/api"
	"github.com/larderhq/larder/internal/extraction"
	"github.com/larderhq/larder/internal/jobstore"
	"github.com/larderhq/larder/internal/svcctx"
)

// CancelResponse acknowledges a cancellation.
type CancelResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// CancelExtractionEndpoint handles DELETE /api/extractions/{id}.
// Cancellation is best-effort: pages already extracting run to completion.
type CancelExtractionEndpoint struct{}

var _ api.Endpoint = (*CancelExtractionEndpoint)(nil)

func (e *CancelExtractionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/extractions/{id}", e.handler
}

func (e *CancelExtractionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Cancel an extraction job
//	@Description	Mark a job cancelled and cancel its remaining page tasks
//	@Tags			extractions
//	@Produce		json
//	@Param			X-User-ID	header	string	false	"Caller identity (defaults to anonymous)"
//	@Param			id			path	string	true	"Job ID"
//	@Success		200	{object}	CancelResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/extractions/{id} [delete]
func (e *CancelExtractionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)

	pipeline := svcctx.PipelineFrom(r.Context())
	if pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "extraction pipeline not initialized")
		return
	}

	jobID := r.PathValue("id")
	if err := pipeline.Cancel(r.Context(), jobID, userID); err != nil {
		switch {
		case errors.Is(err, jobstore.ErrNotFound):
			writeError(w, http.StatusNotFound, jobstore.ErrNotFound.Error())
		case errors.Is(err, extraction.ErrAlreadyTerminal):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to cancel job: %v", err))
		}
		return
	}

	writeJSON(w, http.StatusOK, CancelResponse{JobID: jobID, Status: "cancelled"})
}

func (e *CancelExtractionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [job-id]",
		Short: "Cancel an in-flight extraction job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CancelResponse
			if err := client.Delete(cmd.Context(), "/api/extractions/"+args[0], &resp); err != nil {
				return err
			}
			fmt.Printf("Job ID: %s\nStatus: %s\n", resp.JobID, resp.Status)
			return nil
		},
	}
}
