package media

import "context"

// Uploader defines interface for uploading local files to an external media host
// Возвращаемый URL для core-логики непрозрачная строка
type Uploader interface {
	// Upload uploads the file at localPath and returns its public URL
	// The local file is removed after a successful upload
	Upload(ctx context.Context, localPath string) (string, error)
}
