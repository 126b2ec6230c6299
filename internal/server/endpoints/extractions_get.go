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

// GetExtractionEndpoint handles GET /api/extractions/{id}.
//
// A job owned by another user reads as 404, identically to a job that does
// not exist, so job IDs cannot be enumerated across users.
type GetExtractionEndpoint struct{}

var _ api.Endpoint = (*GetExtractionEndpoint)(nil)

func (e *GetExtractionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/extractions/{id}", e.handler
}

func (e *GetExtractionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Poll an extraction job
//	@Description	Get the aggregate status and extracted recipes for a job
//	@Tags			extractions
//	@Produce		json
//	@Param			X-User-ID	header	string	false	"Caller identity (defaults to anonymous)"
//	@Param			id			path	string	true	"Job ID"
//	@Success		200	{object}	extraction.Result
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/extractions/{id} [get]
func (e *GetExtractionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)

	pipeline := svcctx.PipelineFrom(r.Context())
	if pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "extraction pipeline not initialized")
		return
	}

	result, err := pipeline.Status(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, jobstore.ErrNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read job: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (e *GetExtractionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get [job-id]",
		Short: "Poll an extraction job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var result extraction.Result
			if err := client.Get(cmd.Context(), "/api/extractions/"+args[0], &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}
}
