package contracts

import (
	"fmt"
	"io"
	"mime/multipart"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

var disablePDFConfigDir sync.Once

// validatePDF はアップロードされた内容が PDF として読めるかを確認します。
func validatePDF(file *multipart.FileHeader) error {
	f, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return fmt.Errorf("detect content type: %w", err)
	}
	if !mtype.Is("application/pdf") {
		return fmt.Errorf("unexpected content type %s", mtype.String())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}

	// pdfcpu がユーザーの設定ディレクトリを作らないようにする
	disablePDFConfigDir.Do(pdfapi.DisableConfigDir)
	if err := pdfapi.Validate(f, nil); err != nil {
		return fmt.Errorf("validate pdf: %w", err)
	}
	return nil
}
