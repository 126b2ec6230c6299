package pdfdoc

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// RenderOptions controls page rasterization.
type RenderOptions struct {
	DPI    int    // Resolution in DPI (default 300)
	Format string // "png" or "jpeg" (default "png")
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.DPI <= 0 {
		o.DPI = 300
	}
	if o.Format == "" {
		o.Format = "png"
	}
	return o
}

// RenderPage rasterizes a single page of a PDF using pdftoppm (poppler-utils)
// and returns the image bytes. Page numbers are 1-indexed. A failure here is
// scoped to the requested page; callers decide whether siblings proceed.
func RenderPage(pdfPath string, pageNumber int, opts RenderOptions) ([]byte, error) {
	if pageNumber < 1 {
		return nil, fmt.Errorf("invalid page number %d", pageNumber)
	}
	opts = opts.withDefaults()

	formatFlag := "-png"
	ext := ".png"
	if opts.Format == "jpeg" || opts.Format == "jpg" {
		formatFlag = "-jpeg"
		ext = ".jpg"
	}

	tmpDir, err := os.MkdirTemp("", "larder-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -f/-l N: render only page N
	// -r: resolution in DPI
	// -singlefile: don't add page number suffix
	pageStr := fmt.Sprintf("%d", pageNumber)
	cmd := exec.Command("pdftoppm",
		formatFlag,
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", opts.DPI),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed for page %d: %w (output: %s)", pageNumber, err, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ext)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output for page %d: %w", pageNumber, err)
	}

	return data, nil
}
