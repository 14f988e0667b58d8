package extract

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// extractPDF shells out to pdftotext. The tool wants a file path, so the
// attachment bytes are staged in a temp file first.
func (e *Extractor) extractPDF(ctx context.Context, content []byte) (string, error) {
	dir, err := os.MkdirTemp("", "crm-enrich-pdf-")
	if err != nil {
		return "", eris.Wrap(err, "extract: create temp dir")
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, content, 0600); err != nil {
		return "", eris.Wrap(err, "extract: write temp pdf")
	}

	cmd := exec.CommandContext(ctx, e.pdfToTextPath, "-layout", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "extract: pdftotext failed: %s", stderr.String())
	}

	return stdout.String(), nil
}
