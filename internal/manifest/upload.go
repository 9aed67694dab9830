package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// UploadImage sends an image for the given entity property and returns the
// URLs of the generated sizes keyed by size name.
func (c *Client) UploadImage(ctx context.Context, entity, property, filename, contentType string, r io.Reader) (map[string]string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoteEscaper.Replace(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}
	if err := mw.WriteField("entity", entity); err != nil {
		return nil, fmt.Errorf("write entity field: %w", err)
	}
	if err := mw.WriteField("property", property); err != nil {
		return nil, fmt.Errorf("write property field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload/image", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setHeaders(req)

	data, err := c.do(req, "upload")
	if err != nil {
		return nil, err
	}

	sizes := map[string]string{}
	if err := json.Unmarshal(data, &sizes); err != nil {
		return nil, fmt.Errorf("upload: decode response: %w", err)
	}
	return sizes, nil
}
