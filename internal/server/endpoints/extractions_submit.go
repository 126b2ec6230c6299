package endpoints

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/larderhq/larder/internal/api"
	"github.com/larderhq/larder/internal/extractor"
	"github.com/larderhq/larder/internal/pdfdoc"
	"github.com/larderhq/larder/internal/svcctx"
)

// SubmitResponse acknowledges an accepted extraction job.
type SubmitResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// SubmitExtractionEndpoint handles POST /api/extractions with a multipart
// PDF upload. Validation failures are reported synchronously and create no job.
type SubmitExtractionEndpoint struct {
	MaxUploadBytes int64
}

var _ api.Endpoint = (*SubmitExtractionEndpoint)(nil)

func (e *SubmitExtractionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/extractions", e.handler
}

func (e *SubmitExtractionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Submit a document for extraction
//	@Description	Upload a PDF and queue one recipe-extraction task per page
//	@Tags			extractions
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			X-User-ID	header		string	false	"Caller identity (defaults to anonymous)"
//	@Param			file		formData	file	true	"PDF document"
//	@Param			locale		formData	string	false	"Document locale hint"
//	@Param			region		formData	string	false	"Document region hint"
//	@Success		202	{object}	SubmitResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		413	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/extractions [post]
func (e *SubmitExtractionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)

	// Bound the request body before any parsing. The page-count ceiling is
	// enforced later by document inspection.
	if e.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, e.MaxUploadBytes)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxBytesErr.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", header.Filename))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	pipeline := svcctx.PipelineFrom(r.Context())
	if pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "extraction pipeline not initialized")
		return
	}

	hints := extractor.Hints{
		Locale: r.FormValue("locale"),
		Region: r.FormValue("region"),
	}

	jobID, err := pipeline.SubmitDocument(r.Context(), userID, data, hints)
	if err != nil {
		writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{JobID: jobID, Status: "accepted"})
}

// writeSubmitError maps document validation failures to 4xx responses.
func writeSubmitError(w http.ResponseWriter, err error) {
	var tooLarge *pdfdoc.TooLargeError
	var tooManyPages *pdfdoc.TooManyPagesError

	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, tooLarge.Error())
	case errors.As(err, &tooManyPages):
		writeError(w, http.StatusUnprocessableEntity, tooManyPages.Error())
	case errors.Is(err, pdfdoc.ErrPasswordProtected):
		writeError(w, http.StatusBadRequest, pdfdoc.ErrPasswordProtected.Error())
	case errors.Is(err, pdfdoc.ErrMalformed):
		writeError(w, http.StatusBadRequest, pdfdoc.ErrMalformed.Error())
	default:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to submit document: %v", err))
	}
}

func (e *SubmitExtractionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var locale, region string

	cmd := &cobra.Command{
		Use:   "submit [pdf-file]",
		Short: "Submit a PDF for recipe extraction",
		Long: `Submit a PDF document for asynchronous recipe extraction.

The server fans the document out into one extraction task per page and
returns a job ID immediately. Poll the job with 'larder api get <job-id>'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			fields := map[string]string{}
			if locale != "" {
				fields["locale"] = locale
			}
			if region != "" {
				fields["region"] = region
			}

			var resp SubmitResponse
			if err := client.PostFile(cmd.Context(), "/api/extractions", args[0], fields, &resp); err != nil {
				return err
			}
			fmt.Printf("Job ID: %s\nStatus: %s\n", resp.JobID, resp.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "", "Document locale hint (e.g. en-GB)")
	cmd.Flags().StringVar(&region, "region", "", "Document region hint (e.g. UK)")
	return cmd
}
